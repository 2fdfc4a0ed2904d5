package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/opentsdb-pg/tsdbadapter/internal/ingest"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

func TestHandlePutRejectsEmptyBody(t *testing.T) {
	h := &PutHandler{Sys: &sys.Context{}}
	req := httptest.NewRequest(http.MethodPost, "/api/put", bytes.NewBufferString(`[]`))
	w := httptest.NewRecorder()

	h.HandlePut(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code, "expected 400 for an empty batch")
}

func TestHandlePutRejectsMalformedJSON(t *testing.T) {
	h := &PutHandler{Sys: &sys.Context{}}
	req := httptest.NewRequest(http.MethodPost, "/api/put", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()

	h.HandlePut(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code, "expected 400 for malformed JSON")
}

func TestHandlePutWritesPoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO metric`).
		WithArgs("cpu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO tagset`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO point`)
	mock.ExpectExec(`INSERT INTO point`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ing := ingest.New(db, 64, 64, time.Hour)
	h := &PutHandler{Sys: &sys.Context{Ingest: ing}}

	body := `[{"metric":"cpu","timestamp":1700000000,"value":1.5,"tags":{"host":"a"}}]`
	req := httptest.NewRequest(http.MethodPost, "/api/put", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.HandlePut(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
