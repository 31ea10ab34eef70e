package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/models"
)

// LoadCSV reads a categorical dataset from a CSV file. The header row
// names the attributes; values are label-encoded in first-appearance
// order.
func LoadCSV(path string, logger *logrus.Logger) (*models.Dataset, Codec, error) {
	if logger == nil {
		logger = logrus.New()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("failed to open %s", path))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("failed to parse %s", path))
	}
	if len(records) < 2 {
		return nil, nil, errors.NewStorageError(errors.CodeEmptyDataset,
			fmt.Sprintf("%s has no data rows", path))
	}

	dataset, codec, err := encodeColumns(records[0], records[1:])
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":       path,
		"records":    dataset.Records(),
		"attributes": len(records[0]),
	}).Info("Loaded CSV dataset")

	return dataset, codec, nil
}

// WriteCSV writes a dataset to a CSV file, decoding codes back to labels
// through the codec. A nil codec writes the raw integer codes.
func WriteCSV(path string, dataset *models.Dataset, codec Codec) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to create %s", path))
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	attrs := dataset.Domain().Attributes()
	if err := writer.Write(attrs); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write header")
	}

	row := make([]string, len(attrs))
	for i := 0; i < dataset.Records(); i++ {
		for j, attr := range attrs {
			code := dataset.Column(attr)[i]
			if codec == nil {
				row[j] = strconv.Itoa(code)
				continue
			}
			label, err := codec.Decode(attr, code)
			if err != nil {
				return err
			}
			row[j] = label
		}
		if err := writer.Write(row); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				fmt.Sprintf("failed to write record %d", i))
		}
	}

	return nil
}
