package compose

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/compose-spec/compose-go/v2/cli"
	"gopkg.in/yaml.v3"
)

// Marshal renders the document as YAML. The encoder emits map keys in
// sorted order, so identical inputs produce byte-identical output.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode compose document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes the document to path, or to stdout when path is "-".
func (d *Document) Write(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate loads the generated file back through the compose-go loader,
// catching anything docker-compose itself would reject before we shell
// out to it.
func Validate(ctx context.Context, path string) error {
	options, err := cli.NewProjectOptions(
		[]string{path},
		cli.WithOsEnv,
		cli.WithName(NetworkName),
	)
	if err != nil {
		return fmt.Errorf("failed to create project options: %w", err)
	}
	if _, err := options.LoadProject(ctx); err != nil {
		return fmt.Errorf("generated %s is not a valid compose file: %w", path, err)
	}
	return nil
}
