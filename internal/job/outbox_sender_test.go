package job

import (
	"context"
	"errors"
	"testing"

	"merchantpay/internal/config"
	"merchantpay/internal/model"
	"merchantpay/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 打开内存 SQLite 并建表
// 限制单连接：内存库每个连接各有一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.LoanOffer{},
		&model.LoanApplication{},
		&model.OutboxMessage{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				TransferEvents: "merchantpay.transfer.events",
				LoanEvents:     "merchantpay.loan.events",
			},
		},
		Business: config.BusinessConfig{
			MaxRetryCount:            2,
			PendingTransferAgeMinute: 5,
		},
	}
}

type sentRecord struct {
	topic string
	key   string
	value string
}

// fakeProducer 消息生产者的内存替身
type fakeProducer struct {
	sent    []sentRecord
	sendErr error
}

func (p *fakeProducer) SendMessage(topic, key, value string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, sentRecord{topic: topic, key: key, value: value})
	return nil
}

func seedOutboxMessage(t *testing.T, db *gorm.DB, key string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      "merchantpay.transfer.events",
		Payload:    `{"event":"transfer.sent"}`,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, repository.NewOutboxRepository(db).Create(context.Background(), nil, msg))
	return msg
}

func TestOutboxSenderMarksSent(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{}
	sender := NewOutboxSender(db, producer, testConfig())
	ctx := context.Background()

	msg := seedOutboxMessage(t, db, "TXN001")

	sender.processPendingMessages(ctx)

	require.Len(t, producer.sent, 1)
	assert.Equal(t, "merchantpay.transfer.events", producer.sent[0].topic)
	assert.Equal(t, "TXN001", producer.sent[0].key)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusSent, got.Status)

	// 已发送的消息不会被再次投递
	sender.processPendingMessages(ctx)
	assert.Len(t, producer.sent, 1)
}

// 发送失败累计重试次数，达到上限后转入 FAILED 终态
func TestOutboxSenderRetryLimit(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{sendErr: errors.New("broker 不可达")}
	sender := NewOutboxSender(db, producer, testConfig())
	ctx := context.Background()

	msg := seedOutboxMessage(t, db, "TXN001")

	sender.processPendingMessages(ctx)

	var got model.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, model.OutboxStatusPending, got.Status)

	sender.processPendingMessages(ctx)

	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, model.OutboxStatusFailed, got.Status)

	// 终态消息不再参与投递
	producer.sendErr = nil
	sender.processPendingMessages(ctx)
	assert.Empty(t, producer.sent)
}
