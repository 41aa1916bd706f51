package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"RecoBoard/internal/domain/models"
	"RecoBoard/internal/repository"
	"RecoBoard/internal/service/feed"
	"RecoBoard/internal/services/presentation"
	"RecoBoard/internal/services/window"
	"RecoBoard/pkg/config"
	"RecoBoard/pkg/util"
)

type renderOptions struct {
	file          string
	today         string
	window        string
	cutoff        string
	displayCap    int
	strict        bool
	showAnomalies bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a snapshot file into the presentation payload",
		Long: `Render reads a snapshot (JSON array, {"records": [...]} object, or the
same shapes in YAML) and prints the presentation JSON the board would serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "snapshot file (JSON or YAML)")
	cmd.Flags().StringVar(&opts.today, "today", "", "evaluation date or timestamp (default: now)")
	cmd.Flags().StringVar(&opts.window, "window", "", "BEFORE_CUTOFF, AFTER_CUTOFF or HOLIDAY (default: resolved from --today)")
	cmd.Flags().StringVar(&opts.cutoff, "cutoff", "16:00", "cutoff used when --window is not given")
	cmd.Flags().IntVar(&opts.displayCap, "cap", 20, "active section display cap")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on data-contract violations")
	cmd.Flags().BoolVar(&opts.showAnomalies, "anomalies", false, "print ingestion anomalies to stderr")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runRender(cmd *cobra.Command, opts renderOptions) error {
	loc, err := zoneFlag(cmd)
	if err != nil {
		return err
	}
	if opts.displayCap < 0 {
		return fmt.Errorf("cap must be >= 0, got %d", opts.displayCap)
	}

	b, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	records, err := decodeSnapshot(b)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.file, err)
	}

	now := time.Now().In(loc)
	if opts.today != "" {
		t, ok := util.ParseDateIn(opts.today, loc)
		if !ok {
			return fmt.Errorf("invalid --today %q", opts.today)
		}
		now = t
	}

	tw, err := resolveWindow(opts, loc, now)
	if err != nil {
		return err
	}

	engine := presentation.NewEngine(
		presentation.WithLocation(loc),
		presentation.WithStrictContract(opts.strict),
	)
	res, err := engine.Render(records, now, tw, opts.displayCap)
	if err != nil {
		var ce *presentation.ContractError
		if errors.As(err, &ce) {
			printAnomalies(cmd, ce.Anomalies)
		}
		return err
	}
	if opts.showAnomalies {
		printAnomalies(cmd, res.Anomalies)
	}

	hash, err := repository.ContentHash(records)
	if err != nil {
		return err
	}
	out := models.Presentation{
		SnapshotID:  "file:" + hash[:12],
		AsOf:        now,
		TradingDate: engine.Calendar().DateKey(now),
		Window:      tw,
		Banner:      res.Banner,
		Sections:    res.Sections,
		Digest:      res.Digest,
		Cards:       res.Cards,
		Anomalies:   len(res.Anomalies),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func resolveWindow(opts renderOptions, loc *time.Location, now time.Time) (models.TimeWindow, error) {
	switch tw := models.TimeWindow(opts.window); tw {
	case models.WindowBeforeCutoff, models.WindowAfterCutoff, models.WindowHoliday:
		return tw, nil
	case "":
		cutoff, err := config.ParseCutoff(opts.cutoff)
		if err != nil {
			return "", err
		}
		return window.NewResolver(loc, cutoff).Resolve(now), nil
	default:
		return "", fmt.Errorf("invalid --window %q", opts.window)
	}
}

// yamlRecord carries returnMetrics as a generic value, since the wire
// type holds it as raw JSON.
type yamlRecord struct {
	models.RawRecord `yaml:",inline"`
	ReturnMetrics    interface{} `yaml:"returnMetrics"`
}

// decodeSnapshot accepts the feed's JSON shapes and their YAML equivalents.
func decodeSnapshot(b []byte) ([]models.RawRecord, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return feed.Decode(trimmed)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, errors.New("empty snapshot")
	}
	doc := node.Content[0]
	var rows []yamlRecord
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case yaml.MappingNode:
		var env struct {
			Records *[]yamlRecord `yaml:"records"`
		}
		if err := doc.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if env.Records == nil {
			return nil, errors.New(`yaml mapping without "records"`)
		}
		rows = *env.Records
	default:
		return nil, errors.New("yaml snapshot must be a list or a mapping")
	}

	records := make([]models.RawRecord, 0, len(rows))
	for i, row := range rows {
		rec := row.RawRecord
		if row.ReturnMetrics != nil {
			raw, err := json.Marshal(row.ReturnMetrics)
			if err != nil {
				return nil, fmt.Errorf("record %d returnMetrics: %w", i, err)
			}
			rec.ReturnMetrics = raw
		}
		records = append(records, rec)
	}
	return records, nil
}
