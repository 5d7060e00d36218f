package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/models"
	"newswire/pipeline"
	"newswire/producer"
	"newswire/store"
)

type stubCollector struct {
	records []models.Record
	err     error
}

func (s stubCollector) Name() string {
	return "stub"
}

func (s stubCollector) Collect(ctx context.Context) ([]models.Record, error) {
	return s.records, s.err
}

type stubStreamer struct {
	records []models.Record
	err     error
}

func (s stubStreamer) Name() string {
	return "stub"
}

func (s stubStreamer) Stream(ctx context.Context, emit func(models.Record)) error {
	for _, record := range s.records {
		emit(record)
	}
	return s.err
}

func makeRecords(t *testing.T, ids ...string) []models.Record {
	t.Helper()
	records := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		record, err := models.NewRecord("stub", id, map[string]string{"id": id})
		require.NoError(t, err)
		records = append(records, record)
	}
	return records
}

func TestRun(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()

	// "a" comes in twice, only the first occurrence may be published
	p := pipeline.New(
		stubCollector{records: makeRecords(t, "a", "a", "b")},
		store.NewMemory(),
		producer.NewWithProducer(sp),
		"stub-topic",
	)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Collected)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 2, stats.Published)
	assert.Equal(t, 0, stats.Failed)
}

func TestRunCollectorError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)

	p := pipeline.New(
		stubCollector{err: errors.New("upstream down")},
		store.NewMemory(),
		producer.NewWithProducer(sp),
		"stub-topic",
	)

	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "upstream down")
}

func TestRunStream(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()

	// "a" arrives twice on the stream, only the first occurrence may be
	// published
	p := pipeline.NewStream(
		stubStreamer{records: makeRecords(t, "a", "a", "b")},
		store.NewMemory(),
		producer.NewWithProducer(sp),
		"stub-topic",
	)

	require.NoError(t, p.Run(context.Background(), 0))
}

func TestRunStreamError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)

	p := pipeline.NewStream(
		stubStreamer{err: errors.New("stream broke")},
		store.NewMemory(),
		producer.NewWithProducer(sp),
		"stub-topic",
	)

	assert.ErrorContains(t, p.Run(context.Background(), 0), "stream broke")
}

func TestRunPublishError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndSucceed()

	p := pipeline.New(
		stubCollector{records: makeRecords(t, "a", "b")},
		store.NewMemory(),
		producer.NewWithProducer(sp),
		"stub-topic",
	)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	// The failed record is counted, the run itself carries on
	assert.Equal(t, 2, stats.Collected)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.Failed)
}
