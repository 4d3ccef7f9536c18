package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stammy5/ampere-business-management-sub000/internal/numbering"
)

// GapScanner walks the issued document numbers per (tenant, family,
// year) partition and reports missing counters. Gaps are expected when
// a numbered document was voided; the scan exists so finance can
// account for every hole.
type GapScanner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewGapScanner wires a scanner.
func NewGapScanner(pool *pgxpool.Pool, logger *slog.Logger) *GapScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GapScanner{pool: pool, logger: logger}
}

// HandleSequenceGapScanTask processes TaskSequenceGapScan tasks.
func (s *GapScanner) HandleSequenceGapScanTask(ctx context.Context, t *asynq.Task) error {
	var payload SequenceGapScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return s.Run(ctx, payload)
}

// Run executes the scan synchronously.
func (s *GapScanner) Run(ctx context.Context, payload SequenceGapScanPayload) error {
	totalGaps := 0
	for _, table := range docTables {
		gaps, err := s.scanTable(ctx, table, payload)
		if err != nil {
			return fmt.Errorf("sequence gap scan %s: %w", table.name, err)
		}
		totalGaps += gaps
	}
	s.logger.Info("sequence gap scan finished",
		slog.String("job", TaskSequenceGapScan),
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int("gaps", totalGaps))
	return nil
}

func (s *GapScanner) scanTable(ctx context.Context, table docTable, payload SequenceGapScanPayload) (int, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, doc_number FROM %s
		WHERE ($1 = 0 OR tenant_id = $1)
		ORDER BY tenant_id, doc_number
	`, table.name)

	rows, err := s.pool.Query(ctx, query, payload.TenantID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	// Partition key: "<tenant>/<PREFIX>-<year>-".
	partitions := make(map[string][]int)
	for rows.Next() {
		var tenantID int64
		var number string
		if err := rows.Scan(&tenantID, &number); err != nil {
			return 0, err
		}
		idx := strings.LastIndex(number, "-")
		if idx < 0 {
			continue
		}
		key := fmt.Sprintf("%d/%s", tenantID, number[:idx+1])
		partitions[key] = append(partitions[key], numbering.Counter(number))
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	gaps := 0
	for key, counters := range partitions {
		for _, missing := range missingCounters(counters) {
			gaps++
			s.logger.Warn("document number gap",
				slog.String("table", table.name),
				slog.String("partition", key),
				slog.Int("missing_counter", missing))
		}
	}
	return gaps, nil
}

// missingCounters returns the counters absent from a partition's issued
// set, counting from 1 up to the observed maximum.
func missingCounters(counters []int) []int {
	sorted := append([]int(nil), counters...)
	sort.Ints(sorted)

	var missing []int
	expected := 1
	for _, counter := range sorted {
		for expected < counter {
			missing = append(missing, expected)
			expected++
		}
		if counter == expected {
			expected++
		}
	}
	return missing
}
