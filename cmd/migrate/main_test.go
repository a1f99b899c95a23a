package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psi-backoffice/psi/internal/app"
	"github.com/psi-backoffice/psi/internal/platform/db"
	_ "github.com/psi-backoffice/psi/testing"
)

type fakeRunner struct {
	upCount int
	down    db.Migration
	downErr error
	status  []db.MigrationStatus
}

func (f fakeRunner) Up(context.Context) (int, error)             { return f.upCount, nil }
func (f fakeRunner) Down(context.Context) (db.Migration, error) { return f.down, f.downErr }
func (f fakeRunner) Status(context.Context) ([]db.MigrationStatus, error) {
	return f.status, nil
}

func TestRunDefaultsToUp(t *testing.T) {
	var out bytes.Buffer
	assert.Zero(t, run(context.Background(), fakeRunner{upCount: 3}, nil, &out))
	assert.Equal(t, "applied 3 migration(s)\n", out.String())
}

func TestRunDown(t *testing.T) {
	var out bytes.Buffer
	assert.Zero(t, run(context.Background(), fakeRunner{down: db.Migration{Version: 3, Name: "user_email_not_null"}}, []string{"down"}, &out))
	assert.Equal(t, "reverted 0003_user_email_not_null\n", out.String())

	out.Reset()
	assert.Zero(t, run(context.Background(), fakeRunner{downErr: db.ErrNoMigrations}, []string{"down"}, &out))
	assert.Contains(t, out.String(), "nothing to revert")

	out.Reset()
	assert.Equal(t, 1, run(context.Background(), fakeRunner{downErr: errors.New("no down section")}, []string{"down"}, &out))
}

func TestRunStatus(t *testing.T) {
	var out bytes.Buffer
	status := []db.MigrationStatus{
		{Migration: db.Migration{Version: 1, Name: "init"}, Applied: true},
		{Migration: db.Migration{Version: 2, Name: "expense_remark_not_null"}},
	}
	assert.Zero(t, run(context.Background(), fakeRunner{status: status}, []string{"status"}, &out))
	assert.Equal(t, "0001_init\tapplied\n0002_expense_remark_not_null\tpending\n", out.String())
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), fakeRunner{}, []string{"redo"}, &out))
}

func TestMainSkipsUnderTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	main()
}
