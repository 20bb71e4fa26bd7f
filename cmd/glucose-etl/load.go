package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/angadhsingh1/ETL-Pipeline/internal/config"
	"github.com/angadhsingh1/ETL-Pipeline/internal/database"
	"github.com/angadhsingh1/ETL-Pipeline/internal/loader"
	"github.com/angadhsingh1/ETL-Pipeline/internal/logger"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
	"github.com/angadhsingh1/ETL-Pipeline/internal/notify"
	"github.com/angadhsingh1/ETL-Pipeline/internal/pipeline"
	"github.com/angadhsingh1/ETL-Pipeline/internal/repository"
	"github.com/angadhsingh1/ETL-Pipeline/internal/transform"
)

type loadOptions struct {
	source     string
	sheet      string
	onConflict string
	dryRun     bool
}

func newLoadCmd() *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Clean one batch file and insert it into the database",
		Long: `Reads a CSV or XLSX batch from a local path or s3://bucket/key, drops rows
with readings outside (0, 400), derives avg_reading and category, and
inserts patient_id, readings, average and category into patient_data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), cmd.OutOrStdout(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "batch location (default $GLUCOSE_LOAD_SOURCE)")
	f.StringVar(&opts.sheet, "sheet", "", "worksheet name for XLSX sources")
	f.StringVar(&opts.onConflict, "on-conflict", "", "duplicate patient_id handling: reject, skip or upsert")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the rows that would be inserted without writing")
	return cmd
}

func runLoad(ctx context.Context, out io.Writer, cmd *cobra.Command, opts *loadOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	policy, err := repository.ParseConflictPolicy(cfg.Load.OnConflict)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "glucose-etl")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	var aws *awsClients
	needAWS := strings.HasPrefix(cfg.Load.Source, "s3://") || (cfg.Notify.Backend == "sqs" && !opts.dryRun)
	if needAWS {
		if aws, err = newAWSClients(ctx); err != nil {
			return err
		}
	}

	src := &loader.Source{Sheet: cfg.Load.Sheet}
	if aws != nil {
		src.S3 = aws.s3
	}

	pipelineOpts := pipeline.Options{
		ColumnAliases: cfg.Load.ColumnAliases,
		OnConflict:    policy,
		DryRun:        opts.dryRun,
	}

	if opts.dryRun {
		runner, err := pipeline.NewRunner(src, nil, nil, pipelineOpts, log)
		if err != nil {
			return err
		}
		res, err := runner.Run(ctx, cfg.Load.Source)
		if err != nil {
			return err
		}
		renderRecords(out, res.Records)
		return nil
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Release(db, log)
	log.Info("Connected to DB", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))

	if err := repository.VerifySchema(db); err != nil {
		return err
	}

	notifier, err := newNotifier(ctx, cfg.Notify, aws, log)
	if err != nil {
		return err
	}
	defer notifier.Close()

	runner, err := pipeline.NewRunner(src, repository.NewPatientRepository(db, cfg.Load.BatchSize), notifier, pipelineOpts, log)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, cfg.Load.Source)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d was inserted.\n", res.WrittenRows)
	return nil
}

// ---------- Setup ----------

// loadConfig reads the environment, then applies flags set on the command
// line over the GLUCOSE_LOAD_* values.
func loadConfig(cmd *cobra.Command, opts *loadOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Load.Source = opts.source
	}
	if flags.Changed("sheet") {
		cfg.Load.Sheet = opts.sheet
	}
	if flags.Changed("on-conflict") {
		cfg.Load.OnConflict = opts.onConflict
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type awsClients struct {
	s3  *s3.Client
	sqs *sqs.Client
}

func newAWSClients(ctx context.Context) (*awsClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &awsClients{
		s3: s3.New(s3.Options{
			Region:       cfg.Region,
			Credentials:  cfg.Credentials,
			HTTPClient:   cfg.HTTPClient,
			BaseEndpoint: cfg.BaseEndpoint,
			UsePathStyle: true,
		}),
		sqs: sqs.New(sqs.Options{
			Region:       cfg.Region,
			Credentials:  cfg.Credentials,
			HTTPClient:   cfg.HTTPClient,
			BaseEndpoint: cfg.BaseEndpoint,
		}),
	}, nil
}

func newNotifier(ctx context.Context, cfg config.NotifyConfig, aws *awsClients, log *zap.Logger) (notify.Notifier, error) {
	switch cfg.Backend {
	case "sqs":
		return notify.NewSQSNotifier(ctx, aws.sqs, cfg.Queue, log)
	case "kafka":
		return notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Brokers, cfg.Topic), log), nil
	default:
		return notify.Nop{}, nil
	}
}

// ---------- Output ----------

func renderRecords(w io.Writer, records []model.PatientRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(transform.OutputColumns))
	for i, col := range transform.OutputColumns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range transform.Tuples(records) {
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(records))
}
