package warehouse

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(db, nil), mock
}

func TestCreateTableAs(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS stg_sales")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE stg_sales AS SELECT * FROM sales")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stg_sales")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	rows, err := d.CreateTableAs(context.Background(), "stg_sales", "SELECT * FROM sales")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableAsCreateFails(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS broken")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken AS SELECT nope")).
		WillReturnError(assert.AnError)

	_, err := d.CreateTableAs(context.Background(), "broken", "SELECT nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create table broken")
}

func TestExportCSV(t *testing.T) {
	d, mock := newMockDB(t)
	out := filepath.Join(t.TempDir(), "cleaned_data", "cleaned_sales_forecasting.csv")

	mock.ExpectExec(`COPY cleaned_sales_forecasting TO '.*' \(HEADER, DELIMITER ','\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cleaned_sales_forecasting")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	rows, err := d.ExportCSV(context.Background(), "cleaned_sales_forecasting", out)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)

	// The parent directory is created even though DuckDB writes the file.
	assert.DirExists(t, filepath.Dir(out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCSVBuildsReadCSVQuery(t *testing.T) {
	d, mock := newMockDB(t)
	path := writeTempCSV(t, "sales.csv", "SalesID;TotalPrice\n1;9.99\n")

	mock.ExpectExec(`CREATE OR REPLACE TABLE sales AS SELECT \* FROM read_csv\('.*', delim=';', header=true, nullstr=\['NULL', 'NA', 'N/A', 'NaN', ''\], sample_size=-1\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sales")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, err := d.LoadCSV(context.Background(), "sales", path, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCSVExplicitDelimiter(t *testing.T) {
	d, mock := newMockDB(t)
	path := writeTempCSV(t, "cities.csv", "CityID,CityName\n1,Tucson\n")

	mock.ExpectExec(`CREATE OR REPLACE TABLE cities AS SELECT \* FROM read_csv\('.*', delim='\|', header=true, nullstr=\['x'\], sample_size=-1\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cities")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := d.LoadCSV(context.Background(), "cities", path, CSVOptions{
		Delimiter:  '|',
		NullTokens: []string{"x"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCSVMissingFile(t *testing.T) {
	d, _ := newMockDB(t)
	_, err := d.LoadCSV(context.Background(), "sales", filepath.Join(t.TempDir(), "missing.csv"), CSVOptions{})
	require.Error(t, err)
}

func TestTableMetadata(t *testing.T) {
	d, mock := newMockDB(t)

	cols := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
		AddRow("SalesID", "BIGINT", "NO", 1).
		AddRow("TotalPrice", "DOUBLE", "YES", 2)
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("main", "stg_sales").
		WillReturnRows(cols)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM main.stg_sales")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100))

	meta, err := d.TableMetadata(context.Background(), "stg_sales")
	require.NoError(t, err)
	assert.Equal(t, "main", meta.Schema)
	assert.Equal(t, "stg_sales", meta.Name)
	assert.Equal(t, []string{"SalesID", "TotalPrice"}, meta.ColumnNames())
	assert.False(t, meta.Columns[0].Nullable)
	assert.True(t, meta.Columns[1].Nullable)
	assert.Equal(t, int64(100), meta.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableMetadataNotFound(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("main", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

	_, err := d.TableMetadata(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestApplyParams(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSTALL httpfs; LOAD httpfs;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET memory_limit = '4GB'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := d.applyParams(context.Background(), Params{
		Extensions: []string{"httpfs"},
		Settings:   map[string]string{"memory_limit": "4GB"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilConnectionGuards(t *testing.T) {
	d := &DB{}

	require.Error(t, d.Exec(context.Background(), "SELECT 1"))
	_, err := d.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	_, err = d.CreateTableAs(context.Background(), "t", "SELECT 1")
	require.Error(t, err)
	_, err = d.ExportCSV(context.Background(), "t", "out.csv")
	require.Error(t, err)
	_, err = d.TableMetadata(context.Background(), "t")
	require.Error(t, err)
	assert.NoError(t, d.Close())
}
