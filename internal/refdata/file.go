package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileRepository reads reference data from flat files on every call, so
// edits to the mapping or recipient table are picked up without a restart.
type FileRepository struct {
	templatePath   string
	fieldMapPath   string
	recipientsPath string
}

func NewFileRepository(templatePath, fieldMapPath, recipientsPath string) *FileRepository {
	return &FileRepository{
		templatePath:   templatePath,
		fieldMapPath:   fieldMapPath,
		recipientsPath: recipientsPath,
	}
}

func (r *FileRepository) Template(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read form template: %w", err)
	}
	return data, nil
}

func (r *FileRepository) FieldMap(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(r.fieldMapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read field map: %w", err)
	}

	fieldMap := make(map[string]string)
	if err := json.Unmarshal(data, &fieldMap); err != nil {
		return nil, fmt.Errorf("failed to parse field map: %w", err)
	}
	return fieldMap, nil
}

func (r *FileRepository) Recipients(ctx context.Context) ([]Recipient, error) {
	data, err := os.ReadFile(r.recipientsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Recipient{}, nil
		}
		return nil, fmt.Errorf("failed to read recipient table: %w", err)
	}

	var recipients []Recipient
	if err := json.Unmarshal(data, &recipients); err != nil {
		return nil, fmt.Errorf("failed to parse recipient table: %w", err)
	}
	return recipients, nil
}
