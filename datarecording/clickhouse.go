package datarecording

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
)

// NewClickHouse creates a DataRecorder that writes into a ClickHouse server.
// The DSN follows the clickhouse-go format, for example
// "clickhouse://default:@localhost:9000/ftlsim".
func NewClickHouse(dsn string) (DataRecorder, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing clickhouse dsn: %w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}

	if opts.Settings == nil {
		opts.Settings = clickhouse.Settings{}
	}
	opts.Settings["max_execution_time"] = 60

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return &clickHouseWriter{
		conn:      conn,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}, nil
}

// clickHouseWriter buffers entries per table and sends each table as one
// batch on Flush.
type clickHouseWriter struct {
	conn clickhouse.Conn
	mu   sync.Mutex

	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
}

func clickHouseType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int64:
		return "Int64"
	case reflect.Int8:
		return "Int8"
	case reflect.Int16:
		return "Int16"
	case reflect.Int32:
		return "Int32"
	case reflect.Uint, reflect.Uint64:
		return "UInt64"
	case reflect.Uint8:
		return "UInt8"
	case reflect.Uint16:
		return "UInt16"
	case reflect.Uint32:
		return "UInt32"
	case reflect.Float32:
		return "Float32"
	case reflect.Float64:
		return "Float64"
	case reflect.String:
		return "String"
	default:
		log.Panicf("kind %s has no column type", kind)
		return ""
	}
}

func clickHouseCreateSQL(tableName string, sampleEntry any) string {
	t := reflect.TypeOf(sampleEntry)

	columns := make([]string, 0, t.NumField())
	for i, name := range structs.Names(sampleEntry) {
		columns = append(columns,
			name+" "+clickHouseType(t.Field(i).Type.Kind()))
	}

	return "CREATE TABLE IF NOT EXISTS " + tableName +
		" (\n\t" + strings.Join(columns, ",\n\t") + "\n" +
		") ENGINE = MergeTree() ORDER BY tuple()"
}

// clickHouseRow converts the fields of an entry into the Go types the
// columns of clickHouseType accept.
func clickHouseRow(entry any) []any {
	v := reflect.ValueOf(entry)
	row := make([]any, 0, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)

		switch f.Kind() {
		case reflect.Bool:
			row = append(row, f.Bool())
		case reflect.Int, reflect.Int64:
			row = append(row, f.Int())
		case reflect.Int8:
			row = append(row, int8(f.Int()))
		case reflect.Int16:
			row = append(row, int16(f.Int()))
		case reflect.Int32:
			row = append(row, int32(f.Int()))
		case reflect.Uint, reflect.Uint64:
			row = append(row, f.Uint())
		case reflect.Uint8:
			row = append(row, uint8(f.Uint()))
		case reflect.Uint16:
			row = append(row, uint16(f.Uint()))
		case reflect.Uint32:
			row = append(row, uint32(f.Uint()))
		case reflect.Float32:
			row = append(row, float32(f.Float()))
		case reflect.Float64:
			row = append(row, f.Float())
		default:
			row = append(row, f.String())
		}
	}

	return row
}

func (w *clickHouseWriter) CreateTable(tableName string, sampleEntry any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := checkStructFields(sampleEntry)
	if err != nil {
		log.Panic(err)
	}

	if _, exists := w.tables[tableName]; exists {
		log.Panicf("table %s already exists", tableName)
	}

	err = w.conn.Exec(context.Background(),
		clickHouseCreateSQL(tableName, sampleEntry))
	if err != nil {
		log.Panicf("creating table %s: %v", tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
	w.tableNames = append(w.tableNames, tableName)
}

func (w *clickHouseWriter) InsertData(tableName string, entry any) {
	w.mu.Lock()

	table, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		log.Panicf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		w.mu.Unlock()
		log.Panicf("table %s stores %s, not %T",
			tableName, table.structType, entry)
	}

	table.entries = append(table.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.mu.Unlock()

	if full {
		w.Flush()
	}
}

func (w *clickHouseWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]string(nil), w.tableNames...)
}

func (w *clickHouseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for _, tableName := range w.tableNames {
		table := w.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
		if err != nil {
			log.Panicf("preparing batch for %s: %v", tableName, err)
		}

		for _, entry := range table.entries {
			if err := batch.Append(clickHouseRow(entry)...); err != nil {
				log.Panicf("appending to %s: %v", tableName, err)
			}
		}

		if err := batch.Send(); err != nil {
			log.Panicf("sending batch of %s: %v", tableName, err)
		}

		table.entries = nil
	}

	w.entryCount = 0
}

func (w *clickHouseWriter) Close() error {
	w.Flush()

	return w.conn.Close()
}
