package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
	"github.com/next-chapter/resume-engine/internal/translator"
)

const (
	formatAuto = "auto"
	formatJSON = "json"
	formatYAML = "yaml"
)

type translateOptions struct {
	*rootOptions
	file   string
	format string
	seed   uint64
}

func newTranslateCommand(root *rootOptions) *cobra.Command {
	opts := &translateOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate one athlete profile to résumé text",
		Long: `Translate reads an athlete profile as JSON or YAML and prints the résumé
summary and bullet points as JSON. Nothing is cached or stored.

JSON input uses the API field names (yearsPlayed), YAML input uses snake_case
(years_played).

Example:
  nextchapter translate -f athlete.json
  nextchapter translate -f athlete.yaml --seed 7
  echo '{"sport":"soccer","leadership":["Captain"]}' | nextchapter translate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "Input file, - for stdin")
	cmd.Flags().StringVar(&opts.format, "format", formatAuto, "Input format: auto, json or yaml")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for random fundraising figures (0 keeps them stable)")

	return cmd
}

func runTranslate(cmd *cobra.Command, opts *translateOptions) (err error) {
	data, err := readInput(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}

	format := opts.format
	if format == formatAuto {
		format = detectFormat(opts.file, data)
	}

	in, err := decodeAthlete(data, format)
	if err != nil {
		return err
	}

	if err := resume.Validate(in); err != nil {
		return err
	}

	var trOpts []translator.Option
	if opts.seed != 0 {
		trOpts = append(trOpts, translator.WithRandom(rand.New(rand.NewPCG(opts.seed, opts.seed))))
	}

	tr, err := loadTranslator(opts.catalogDir, trOpts...)
	if err != nil {
		return err
	}

	result := tr.Translate(in)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Wrap(err, "failed to write result")
	}
	return nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stdin")
		}
		return data, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}
	return data, nil
}

// detectFormat goes by file extension, then by whether the payload looks like a JSON object
func detectFormat(file string, data []byte) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return formatJSON
	}
	return formatYAML
}

func decodeAthlete(data []byte, format string) (in models.AthleteInput, err error) {
	switch format {
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&in)
	case formatYAML:
		err = yaml.Unmarshal(data, &in)
	default:
		return in, errors.Errorf("unknown input format %q", format)
	}

	if err != nil {
		return in, errors.Wrapf(err, "failed to parse %s input", format)
	}
	return in, nil
}
