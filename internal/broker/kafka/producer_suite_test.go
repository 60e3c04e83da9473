package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/PayTrack/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	ctx context.Context
	wm  *writerMock
	p   *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.ctx = context.Background()
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TearDownTest() {
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestNewProducer_ClosesWriter() {
	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
	s.Require().NoError(p.Close())
}

func (s *ProducerSuite) TestClose_WriterWithoutCloser() {
	s.Require().NoError(s.p.Close())
}

func (s *ProducerSuite) TestPublish_SingleMessage() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 &&
				msgs[0].Topic == "paytrack.sms" &&
				string(msgs[0].Key) == "01711000000" &&
				string(msgs[0].Value) == "raw sms"
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(s.ctx, "paytrack.sms", []byte("01711000000"), []byte("raw sms")))
}

func (s *ProducerSuite) TestPublish_WriterErrorWrapped() {
	want := errors.New("broker down")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(s.ctx, "paytrack.sms", nil, []byte("x"))
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "kafka publish")
}

func (s *ProducerSuite) TestPublishJSON_KeyedBySession() {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var got messages.SessionVerified
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || msgs[0].Topic != "paytrack.verified" || string(msgs[0].Key) != "sess-1" {
				return false
			}
			return json.Unmarshal(msgs[0].Value, &got) == nil
		})).
		Return(nil).
		Once()

	err := s.p.PublishJSON(s.ctx, "paytrack.verified", "sess-1", messages.SessionVerified{
		SessionID:  "sess-1",
		ReceiptID:  "rc-1",
		VerifiedAt: at,
	})
	s.Require().NoError(err)
	s.Require().Equal("rc-1", got.ReceiptID)
	s.Require().True(at.Equal(got.VerifiedAt))
}

func (s *ProducerSuite) TestPublishJSON_MarshalErrorSkipsWriter() {
	err := s.p.PublishJSON(s.ctx, "paytrack.verified", "sess-1", map[string]any{"bad": make(chan int)})
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "marshal message")
	s.wm.AssertNotCalled(s.T(), "WriteMessages", mock.Anything, mock.Anything)
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
