package job

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestBulkUpdateJob_UpdatesAuthorizedTasks(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	otherID := uuid.New()

	owned := testTask(actorID, nil)
	assigned := testTask(otherID, &actorID)
	foreign := testTask(otherID, nil)

	taskStore := newFakeTaskStore(owned, assigned, foreign)
	submitter := &fakeSubmitter{}

	j, err := NewBulkUpdateJob(
		[]uuid.UUID{owned.ID, assigned.ID, foreign.ID, uuid.New()},
		strPtr("completed"),
		nil,
		actorID,
		taskStore,
		submitter,
		newMockMailer(),
		discardLogger(),
	)
	require.NoError(t, err)

	require.NoError(t, j.Execute(context.Background()))

	// Owned and assigned tasks change; the foreign and missing ones are
	// skipped without failing the job.
	assert.ElementsMatch(t, []uuid.UUID{owned.ID, assigned.ID}, taskStore.updated)
	assert.Equal(t, domain.TaskStatusCompleted, owned.Status)
	assert.Equal(t, domain.TaskStatusCompleted, assigned.Status)
	assert.Equal(t, domain.TaskStatusPending, foreign.Status)
}

func TestBulkUpdateJob_AppliesPriority(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	task := testTask(actorID, nil)

	taskStore := newFakeTaskStore(task)

	j, err := NewBulkUpdateJob(
		[]uuid.UUID{task.ID},
		nil,
		strPtr("high"),
		actorID,
		taskStore,
		&fakeSubmitter{},
		newMockMailer(),
		discardLogger(),
	)
	require.NoError(t, err)

	require.NoError(t, j.Execute(context.Background()))

	assert.Equal(t, domain.TaskPriorityHigh, task.Priority)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestBulkUpdateJob_EnqueuesNotificationPerUpdatedTask(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	first := testTask(actorID, nil)
	second := testTask(actorID, nil)

	taskStore := newFakeTaskStore(first, second)
	submitter := &fakeSubmitter{}

	j, err := NewBulkUpdateJob(
		[]uuid.UUID{first.ID, second.ID},
		strPtr("in_progress"),
		nil,
		actorID,
		taskStore,
		submitter,
		newMockMailer(),
		discardLogger(),
	)
	require.NoError(t, err)

	require.NoError(t, j.Execute(context.Background()))

	submitted := submitter.submittedJobs()
	require.Len(t, submitted, 2)
	for _, followUp := range submitted {
		assert.Equal(t, JobTypeTaskNotification, followUp.Type())
	}
}

func TestBulkUpdateJob_ConstructionValidation(t *testing.T) {
	t.Parallel()

	taskStore := newFakeTaskStore()
	submitter := &fakeSubmitter{}
	m := newMockMailer()
	logger := discardLogger()

	_, err := NewBulkUpdateJob(nil, strPtr("completed"), nil, uuid.New(),
		taskStore, submitter, m, logger)
	assert.ErrorIs(t, err, ErrEmptyTaskIDs)

	_, err = NewBulkUpdateJob([]uuid.UUID{uuid.New()}, nil, nil, uuid.New(),
		taskStore, submitter, m, logger)
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = NewBulkUpdateJob([]uuid.UUID{uuid.New()}, strPtr("completed"), nil, uuid.New(),
		nil, submitter, m, logger)
	assert.ErrorIs(t, err, ErrNilTaskStore)
}

func TestBulkUpdateJob_ReconstructorRoundTrip(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	task := testTask(actorID, nil)
	taskStore := newFakeTaskStore(task)
	submitter := &fakeSubmitter{}
	m := newMockMailer()

	original, err := NewBulkUpdateJob(
		[]uuid.UUID{task.ID},
		strPtr("completed"),
		nil,
		actorID,
		taskStore,
		submitter,
		m,
		discardLogger(),
	)
	require.NoError(t, err)

	rebuild := NewBulkUpdateJobReconstructor(taskStore, submitter, m, discardLogger())
	rebuilt, err := rebuild(original.ID(), original.Payload())
	require.NoError(t, err)

	assert.Equal(t, original.ID(), rebuilt.ID())
	require.NoError(t, rebuilt.Execute(context.Background()))
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}
