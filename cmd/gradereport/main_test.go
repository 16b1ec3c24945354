package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/config"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const fixture = `- {record_id: a, learner_id: 1, class_id: C1, scores: [{type: exam, score: 90}, {type: quiz, score: 80}, {type: homework, score: 70}]}
- {record_id: b, learner_id: 2, class_id: C2, scores: [{type: exam, score: 50}]}
`

func TestRun_Fixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	var buf bytes.Buffer
	err := run(context.Background(), &buf, config.New(), options{fixture: path, learner: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Class averages for learner 1")
	assert.Contains(t, out, "83.00")
	assert.Contains(t, out, "undefined")
	assert.Contains(t, out, "50.00%")
}

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "grades.db")
	store, err := repository.OpenSQL(ctx, repository.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, model.ScoreRecord{
		RecordID: "x", LearnerID: 9, ClassID: "C9",
		Scores: []model.ScoreEntry{
			model.Entry(model.CategoryExam, 100),
			model.Entry(model.CategoryQuiz, 100),
			model.Entry(model.CategoryHomework, 100),
		},
	}))
	require.NoError(t, store.Close())

	var buf bytes.Buffer
	err = run(ctx, &buf, config.New(), options{driver: repository.DriverSQLite, dsn: dsn, learner: -1, class: "C9"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Learner averages in C9")
	assert.Contains(t, buf.String(), "100.00")
}

func TestRun_NoSource(t *testing.T) {
	err := run(context.Background(), io.Discard, config.New(), options{learner: -1})
	assert.Error(t, err)
}
