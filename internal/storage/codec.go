package storage

import (
	"fmt"

	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/models"
)

// Codec maps each attribute's value labels to their integer codes; the
// slice index is the code. It is produced at load time and used to decode
// synthetic records back to labels.
type Codec map[string][]string

// Decode returns the label for one attribute code.
func (c Codec) Decode(attr string, code int) (string, error) {
	labels, ok := c[attr]
	if !ok {
		return "", errors.NewStorageError(errors.CodeUnknownAttribute,
			fmt.Sprintf("no codec for attribute %q", attr))
	}
	if code < 0 || code >= len(labels) {
		return "", errors.NewStorageError(errors.CodeWriteFailed,
			fmt.Sprintf("code %d outside codec for attribute %q", code, attr))
	}
	return labels[code], nil
}

// encodeColumns label-encodes string-valued columns in first-appearance
// order and builds the matching domain.
func encodeColumns(attrs []string, rows [][]string) (*models.Dataset, Codec, error) {
	codec := make(Codec, len(attrs))
	codes := make(map[string]map[string]int, len(attrs))
	columns := make(map[string][]int, len(attrs))
	for _, attr := range attrs {
		codes[attr] = make(map[string]int)
		columns[attr] = make([]int, 0, len(rows))
	}

	for _, row := range rows {
		if len(row) != len(attrs) {
			return nil, nil, errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("row has %d values, expected %d", len(row), len(attrs)))
		}
		for i, attr := range attrs {
			label := row[i]
			code, seen := codes[attr][label]
			if !seen {
				code = len(codec[attr])
				codes[attr][label] = code
				codec[attr] = append(codec[attr], label)
			}
			columns[attr] = append(columns[attr], code)
		}
	}

	cards := make([]int, len(attrs))
	for i, attr := range attrs {
		if len(codec[attr]) == 0 {
			return nil, nil, errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("attribute %q has no values", attr))
		}
		cards[i] = len(codec[attr])
	}

	domain, err := models.NewDomain(attrs, cards)
	if err != nil {
		return nil, nil, err
	}
	dataset, err := models.NewDataset(domain, columns)
	if err != nil {
		return nil, nil, err
	}
	return dataset, codec, nil
}
