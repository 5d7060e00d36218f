package producer_test

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/models"
	"newswire/producer"
)

func TestPublish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var record models.Record
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		assert.Equal(t, "rss", record.Source)
		assert.Equal(t, "article-1", record.ID)

		var article models.Article
		require.NoError(t, json.Unmarshal(record.Payload, &article))
		assert.Equal(t, "Hello world", article.Title)
		return nil
	})

	p := producer.NewWithProducer(sp)

	record, err := models.NewRecord("rss", "article-1", models.Article{Title: "Hello world"})
	require.NoError(t, err)

	require.NoError(t, p.Publish("rss", record))
	require.NoError(t, p.Close())
}

func TestPublishError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := producer.NewWithProducer(sp)

	record, err := models.NewRecord("rss", "article-1", models.Article{Title: "Hello world"})
	require.NoError(t, err)

	err = p.Publish("rss", record)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
}
