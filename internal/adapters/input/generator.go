package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// TimestampLayout is the timestamp format written to generated logs.
const TimestampLayout = "2006-01-02 15:04:05"

type weightedSource struct {
	addr   string
	weight float64
}

var (
	generatorSources = []weightedSource{
		{"192.168.1.10", 0.3},
		{"192.168.1.20", 0.3},
		{"10.0.0.5", 0.2},
		{"203.0.113.50", 0.1},
		{"198.51.100.1", 0.1},
	}
	generatorPorts   = []int{22, 80, 443, 3389, 21}
	generatorReasons = []string{"OK", "INVALID", "AUTH_FAIL", "PORT_SCAN", "FLOOD"}
)

const (
	scannerAddr   = "203.0.113.50"
	bruteAddr     = "198.51.100.1"
	flooderAddr   = "10.0.0.5"
	embeddedPort  = 22
	acceptPercent = 70
)

// GeneratorConfig configures synthetic log generation.
type GeneratorConfig struct {
	Seed        int64         // Random seed; equal seeds give identical logs
	Rows        int           // Background rows (default: 1000)
	Start       time.Time     // First possible timestamp
	Span        time.Duration // Timestamps fall in [Start, Start+Span) (default: 1h)
	Destination string        // Destination address for every row
	Bursts      bool          // Append one burst per signature that trips both profiles
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		Rows:        1000,
		Start:       time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC),
		Span:        time.Hour,
		Destination: "192.168.1.1",
	}
}

// Generator produces synthetic firewall logs. It holds no random state
// between calls: every Records call reseeds from config.Seed.
type Generator struct {
	config GeneratorConfig
}

func NewGenerator(config GeneratorConfig) *Generator {
	def := DefaultGeneratorConfig()
	if config.Rows < 0 {
		config.Rows = 0
	}
	if config.Start.IsZero() {
		config.Start = def.Start
	}
	if config.Span < time.Second {
		config.Span = def.Span
	}
	if config.Destination == "" {
		config.Destination = def.Destination
	}
	return &Generator{config: config}
}

// Records generates the log table.
//
// Background traffic picks sources by weight, ports and reasons uniformly,
// and ACCEPT 70% of the time. Rows from the scanner address on port 22 are
// forced to DENY/PORT_SCAN and rows from the brute-force address on port 22
// to DENY/AUTH_FAIL. Output is ordered by timestamp.
func (g *Generator) Records() []domain.LogRecord {
	rng := rand.New(rand.NewSource(g.config.Seed))
	spanSeconds := int64(g.config.Span / time.Second)

	records := make([]domain.LogRecord, 0, g.config.Rows)
	for i := 0; i < g.config.Rows; i++ {
		rec := domain.LogRecord{
			Timestamp:          g.config.Start.Add(time.Duration(rng.Int63n(spanSeconds)) * time.Second),
			SourceAddress:      pickSource(rng),
			DestinationAddress: g.config.Destination,
			Port:               generatorPorts[rng.Intn(len(generatorPorts))],
			Action:             domain.ActionAccept,
			Reason:             generatorReasons[rng.Intn(len(generatorReasons))],
		}
		if rng.Intn(100) >= acceptPercent {
			rec.Action = domain.ActionDeny
		}

		if rec.Port == embeddedPort {
			switch rec.SourceAddress {
			case scannerAddr:
				rec.Action, rec.Reason = domain.ActionDeny, "PORT_SCAN"
			case bruteAddr:
				rec.Action, rec.Reason = domain.ActionDeny, "AUTH_FAIL"
			}
		}
		records = append(records, rec)
	}

	if g.config.Bursts {
		records = append(records, g.bursts(rng)...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	for i := range records {
		records[i].Line = i + 1
	}
	return records
}

// bursts builds one concentrated attack per signature, each inside a
// single minute and above the relaxed thresholds (10/5/50).
func (g *Generator) bursts(rng *rand.Rand) []domain.LogRecord {
	minute := func(offset time.Duration) time.Time {
		return domain.TruncateWindow(g.config.Start.Add(offset), time.Minute)
	}
	span := g.config.Span

	var out []domain.LogRecord
	add := func(n int, at time.Time, src string, port func() int, reason func() string) {
		for i := 0; i < n; i++ {
			out = append(out, domain.LogRecord{
				Timestamp:          at.Add(time.Duration(rng.Intn(60)) * time.Second),
				SourceAddress:      src,
				DestinationAddress: g.config.Destination,
				Port:               port(),
				Action:             domain.ActionDeny,
				Reason:             reason(),
			})
		}
	}
	fixedPort := func() int { return embeddedPort }
	anyPort := func() int { return generatorPorts[rng.Intn(len(generatorPorts))] }

	add(12, minute(span/6), scannerAddr, fixedPort, func() string { return "PORT_SCAN" })
	add(6, minute(span*5/12), bruteAddr, fixedPort, func() string { return "AUTH_FAIL" })
	add(55, minute(span*2/3), flooderAddr, anyPort, func() string { return "FLOOD" })
	return out
}

func pickSource(rng *rand.Rand) string {
	r := rng.Float64()
	acc := 0.0
	for _, s := range generatorSources {
		acc += s.weight
		if r < acc {
			return s.addr
		}
	}
	return generatorSources[len(generatorSources)-1].addr
}

// WriteCSV writes records with the standard header.
func WriteCSV(w io.Writer, records []domain.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	for _, rec := range records {
		row[0] = rec.Timestamp.UTC().Format(TimestampLayout)
		row[1] = rec.SourceAddress
		row[2] = rec.DestinationAddress
		row[3] = strconv.Itoa(rec.Port)
		row[4] = string(rec.Action)
		row[5] = rec.Reason
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// GenerateFile writes a synthetic log to path, creating parent directories.
//
// Returns:
//   - Number of data rows written
func GenerateFile(path string, config GeneratorConfig) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	records := NewGenerator(config).Records()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(records), f.Close()
}
