package tabular

import (
	"context"
	"errors"
	"sync"
	"testing"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/dbtest"
	"docintake/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

type recorder struct{ events []audit.Event }

func (r *recorder) Record(_ context.Context, ev audit.Event) { r.events = append(r.events, ev) }

func newProcessor(t *testing.T) (*Processor, *gorm.DB, *memStore, *recorder) {
	t.Helper()
	db := dbtest.Open(t)
	st := &memStore{}
	rec := &recorder{}
	return NewProcessor(db, st, rec, logger.Nop()), db, st, rec
}

func TestProcessDuplicateExample(t *testing.T) {
	p, db, st, rec := newProcessor(t)
	res, err := p.Process(context.Background(), Upload{
		FileName:    "items.csv",
		ContentType: "text/csv",
		Data:        []byte("id,name,price\n1,Apple,1.5\n2,Apple,2.0\n"),
		Param1:      param("p1"),
		Param2:      param("p2"),
		UploadedBy:  "7",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsSaved)
	assert.Equal(t, []Validation{{Row: 2, Column: "name", Error: "DUPLICATE", Message: "duplicate name"}}, res.Validations)
	assert.Contains(t, res.StoragePath, "mem://uploads/")
	assert.Len(t, st.objects, 1)

	var file models.File
	require.NoError(t, db.First(&file, res.FileID).Error)
	assert.Equal(t, "p1", file.Param1)
	assert.Equal(t, "p2", file.Param2)
	assert.Equal(t, 1, file.RowsSaved)
	assert.Equal(t, 1, file.ErrorCount)

	var rows []models.DataRow
	require.NoError(t, db.Where("file_id = ?", res.FileID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "Apple", rows[0].Name)
	assert.InDelta(t, 1.5, rows[0].Price, 1e-9)
	require.NotNil(t, rows[0].ExternalID)
	assert.Equal(t, "1", *rows[0].ExternalID)
	assert.Equal(t, "7", rows[0].UploadedBy)

	var fvs []models.FileValidation
	require.NoError(t, db.Where("file_id = ?", res.FileID).Find(&fvs).Error)
	require.Len(t, fvs, 1)
	assert.Equal(t, 2, fvs[0].RowNumber)

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.DocumentUpload, rec.events[0].Type)
	assert.Equal(t, 1, rec.events[0].Metadata["rows_saved"])
	assert.Equal(t, 1, rec.events[0].Metadata["errors"])
}

func TestProcessCleanExcel(t *testing.T) {
	p, db, _, _ := newProcessor(t)
	res, err := p.Process(context.Background(), Upload{
		FileName: "items.xlsx",
		Data: workbook(t,
			[]string{"ID", "Name", "Price"},
			[]string{"1", "Apple", "1.5"},
			[]string{"", "Pear", "2"},
		),
		Param1: param("a"),
		Param2: param("b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsSaved)
	assert.NotNil(t, res.Validations)
	assert.Empty(t, res.Validations)

	var n int64
	require.NoError(t, db.Model(&models.DataRow{}).Where("file_id = ?", res.FileID).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestProcessRequiresParams(t *testing.T) {
	p, _, st, _ := newProcessor(t)
	_, err := p.Process(context.Background(), Upload{FileName: "a.csv", Data: []byte("name,price\nA,1\n"), Param1: param("x")})
	assert.ErrorIs(t, err, ErrMissingParams)
	assert.Empty(t, st.objects)
}

func TestProcessAcceptsEmptyParams(t *testing.T) {
	p, db, _, _ := newProcessor(t)
	res, err := p.Process(context.Background(), Upload{FileName: "a.csv", Data: []byte("name,price\nA,1\n"), Param1: param(""), Param2: param("b")})
	require.NoError(t, err)

	var file models.File
	require.NoError(t, db.First(&file, res.FileID).Error)
	assert.Empty(t, file.Param1)
	assert.Equal(t, "b", file.Param2)
}

func param(s string) *string { return &s }

func TestProcessUnreadable(t *testing.T) {
	p, db, _, rec := newProcessor(t)
	_, err := p.Process(context.Background(), Upload{FileName: "legacy.xls", Data: []byte("\xd0\xcf\x11\xe0garbage"), Param1: param("a"), Param2: param("b")})
	assert.ErrorIs(t, err, ErrUnreadable)

	var n int64
	require.NoError(t, db.Model(&models.File{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, rec.events)
}

func TestProcessStoreFailure(t *testing.T) {
	p, _, st, _ := newProcessor(t)
	st.err = errors.New("disk full")
	_, err := p.Process(context.Background(), Upload{FileName: "a.csv", Data: []byte("name,price\nA,1\n"), Param1: param("a"), Param2: param("b")})
	assert.ErrorContains(t, err, "disk full")
}
