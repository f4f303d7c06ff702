package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/store"
)

// BigQuery command flags
var (
	bqProject    string
	bqDataset    string
	bqDB         string
	bqCollection string
)

const (
	bqNodesTable = "navtree_nodes"
	bqBatchSize  = 500
)

// NavtreeNodeRow is one canonical tree node as exported to BigQuery.
type NavtreeNodeRow struct {
	IngestionTime time.Time            `bigquery:"ingestion_time"`
	CollectionID  string               `bigquery:"collection_id"`
	TreePath      string               `bigquery:"tree_path"`
	Name          string               `bigquery:"name"`
	Link          string               `bigquery:"link"`
	IsDirectory   bool                 `bigquery:"is_directory"`
	Depth         int                  `bigquery:"depth"`
	Coverage      bigquery.NullFloat64 `bigquery:"coverage"`
	CoverageClass string               `bigquery:"coverage_class"`
}

var navtreeNodesSchema = bigquery.Schema{
	{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "collection_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "tree_path", Type: bigquery.StringFieldType, Required: true},
	{Name: "name", Type: bigquery.StringFieldType, Required: true},
	{Name: "link", Type: bigquery.StringFieldType},
	{Name: "is_directory", Type: bigquery.BooleanFieldType, Required: true},
	{Name: "depth", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "coverage", Type: bigquery.FloatFieldType},
	{Name: "coverage_class", Type: bigquery.StringFieldType},
}

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "BigQuery operations",
	Long:  `Export compiled navigation trees to Google BigQuery for cross-report analysis.`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a compiled tree into BigQuery",
	Long: `Ingest the tree stored by 'compile' into the navtree_nodes table, one row
per node, tagged with the collection ID and the ingestion time.

The dataset and table are created if they don't exist.`,
	Example: `  navtree bigquery --project my-project --dataset coverage \
    ingest --db coverage.db --collection nightly-2026-10-17`,
	RunE: runIngest,
}

func init() {
	bigqueryCmd.PersistentFlags().StringVar(&bqProject, "project", "", "GCP project ID (required)")
	bigqueryCmd.PersistentFlags().StringVar(&bqDataset, "dataset", "", "BigQuery dataset name (required)")
	bigqueryCmd.MarkPersistentFlagRequired("project")
	bigqueryCmd.MarkPersistentFlagRequired("dataset")

	ingestCmd.Flags().StringVar(&bqDB, "db", "coverage.db", "SQLite database written by compile")
	ingestCmd.Flags().StringVar(&bqCollection, "collection", "", "Collection ID recorded with every row (required)")
	ingestCmd.MarkFlagRequired("collection")

	bigqueryCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(bigqueryCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ingestionTime := time.Now().UTC()

	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("Ingesting tree for collection: %s", bqCollection)
	logger.Info("BigQuery target: %s.%s", bqProject, bqDataset)

	if _, err := os.Stat(bqDB); err != nil {
		return fmt.Errorf("database not found at %s, run 'compile' first", bqDB)
	}

	s, err := store.OpenReadOnly(logger, bqDB)
	if err != nil {
		return err
	}
	defer s.Close()

	nodeRows, err := s.LoadRows(ctx)
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	if len(nodeRows) == 0 {
		logger.Warning("No tree stored in %s", bqDB)
		return nil
	}
	rows := buildNodeRows(nodeRows, bqCollection, ingestionTime)
	logger.Info("Loaded %d nodes from database", len(rows))

	bqClient, err := bigquery.NewClient(ctx, bqProject)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer bqClient.Close()

	if err := ensureBQDatasetAndTables(ctx, bqClient, logger); err != nil {
		return fmt.Errorf("setup BigQuery: %w", err)
	}

	inserter := bqClient.Dataset(bqDataset).Table(bqNodesTable).Inserter()

	inserted := 0
	for _, batch := range batchRows(rows, bqBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			logger.Warning("Batch insert of %d rows failed: %v", len(batch), err)
			continue
		}
		inserted += len(batch)
	}

	logger.Success("Ingested %d of %d rows into %s", inserted, len(rows), bqNodesTable)
	return nil
}

// buildNodeRows converts stored nodes into BigQuery rows. Coverage values
// that are not numbers are left null.
func buildNodeRows(nodes []store.NodeRow, collection string, ingestionTime time.Time) []NavtreeNodeRow {
	rows := make([]NavtreeNodeRow, 0, len(nodes))
	for _, n := range nodes {
		row := NavtreeNodeRow{
			IngestionTime: ingestionTime,
			CollectionID:  collection,
			TreePath:      n.TreePath,
			Name:          n.Name,
			Link:          n.Link,
			IsDirectory:   n.IsDirectory,
			Depth:         n.Depth,
			CoverageClass: n.CoverageClass,
		}
		if pct, err := strconv.ParseFloat(strings.TrimSpace(n.CoverageText()), 64); err == nil {
			row.Coverage = bigquery.NullFloat64{Float64: pct, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// batchRows splits rows into insert batches of at most size rows.
func batchRows(rows []NavtreeNodeRow, size int) [][]*NavtreeNodeRow {
	var batches [][]*NavtreeNodeRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]*NavtreeNodeRow, 0, end-start)
		for j := start; j < end; j++ {
			batch = append(batch, &rows[j])
		}
		batches = append(batches, batch)
	}
	return batches
}

// isAlreadyExists reports whether a create call failed because the resource
// is already there.
func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Already Exists") ||
		strings.Contains(msg, "alreadyExists") ||
		strings.Contains(msg, "409")
}

// ensureBQDatasetAndTables creates the dataset and table if they don't exist.
func ensureBQDatasetAndTables(ctx context.Context, client *bigquery.Client, logger *log.Logger) error {
	dataset := client.Dataset(bqDataset)

	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("create dataset: %w", err)
		}
	} else {
		logger.Info("Created dataset %s.%s", bqProject, bqDataset)
	}

	table := dataset.Table(bqNodesTable)
	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema: navtreeNodesSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"collection_id", "tree_path"},
		},
	}); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("create %s table: %w", bqNodesTable, err)
		}
	} else {
		logger.Info("Created table %s", bqNodesTable)
	}

	return nil
}
