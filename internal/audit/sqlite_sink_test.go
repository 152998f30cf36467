package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/healthcore/internal/model"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	sink, err := NewSQLiteSink(ctx, path)
	require.NoError(t, err)

	log := NewLog(sink)
	require.NoError(t, log.Append(ctx, event("P1", "DOC-1", model.EventRecordUploaded)))
	require.NoError(t, log.Append(ctx, event("P1", "DOC-1", model.EventRecordDownloaded)))
	require.NoError(t, sink.Close())

	// Reopen: schema bootstrap is idempotent and data survived.
	sink, err = NewSQLiteSink(ctx, path)
	require.NoError(t, err)
	defer sink.Close()

	seq, err := sink.LastSequence(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	seq, err = sink.LastSequence(ctx, "P9")
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestSQLiteSinkSequenceResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	sink, err := NewSQLiteSink(ctx, path)
	require.NoError(t, err)
	log := NewLogWithBootstrap(sink, sink.LastSequence)
	require.NoError(t, log.Append(ctx, event("P1", "DOC-1", model.EventRecordUploaded)))
	require.NoError(t, log.Append(ctx, event("P1", "DOC-1", model.EventRecordDownloaded)))
	require.NoError(t, sink.Close())

	// A fresh process must continue numbering, not restart at 1: that
	// would collide with the persisted (patient_id, seq) rows and fail
	// every subsequent append for the patient.
	sink, err = NewSQLiteSink(ctx, path)
	require.NoError(t, err)
	defer sink.Close()

	log = NewLogWithBootstrap(sink, sink.LastSequence)
	e := event("P1", "NUR-1", model.EventPatientUpdated)
	require.NoError(t, log.Append(ctx, e))
	assert.Equal(t, uint64(3), e.Sequence)

	// An untouched patient still starts at 1.
	fresh := event("P2", "NUR-1", model.EventPatientUpdated)
	require.NoError(t, log.Append(ctx, fresh))
	assert.Equal(t, uint64(1), fresh.Sequence)

	seq, err := sink.LastSequence(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}
