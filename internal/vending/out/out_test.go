package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/retry"
)

var sample = VendEvent{Caller: model.Identity{0x01}, At: 42, Index: 3, Remaining: 7, Balance: 2}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool", "events.bin")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.Emit(context.Background(), TypeVend, sample))
	second := sample
	second.Index = 4
	require.NoError(t, s.Emit(context.Background(), TypeVend, second))
	require.NoError(t, s.Close())

	envs, err := ReadSpool(path)
	require.NoError(t, err)
	require.Len(t, envs, 2)

	var got VendEvent
	require.Equal(t, TypeVend, envs[1].Type)
	require.NoError(t, json.Unmarshal(envs[1].Data, &got))
	require.Equal(t, second, got)
}

func TestKafkaSinkPublishesEnvelope(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != TypeVend {
			return errors.New("wrong type " + env.Type)
		}
		var ev VendEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		if ev != sample {
			return errors.New("payload mismatch")
		}
		return nil
	})

	s := newKafkaSink(p, "vending.events")
	require.NoError(t, s.Emit(context.Background(), TypeVend, sample))
	require.NoError(t, s.Close())
}

func TestKafkaSinkWrapsSendError(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(errors.New("broker down"))

	s := newKafkaSink(p, "vending.events")
	err := s.Emit(context.Background(), TypeVend, sample)
	require.ErrorContains(t, err, "kafka emit failed")
	require.NoError(t, s.Close())
}

func TestSplitCSV(t *testing.T) {
	require.Equal(t, []string{"a:1", "b:2"}, SplitCSV(" a:1, ,b:2 "))
	require.Empty(t, SplitCSV(""))
}

func TestReadSpoolIgnoresTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.bin")
	s, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Emit(context.Background(), TypeVend, sample))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 50, '{'})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	envs, err := ReadSpool(path)
	require.NoError(t, err)
	require.Len(t, envs, 1)
}

func TestClassifyEmit(t *testing.T) {
	_, marshalErr := json.Marshal(func() {})
	require.Error(t, marshalErr)

	require.Equal(t, retry.Fatal, ClassifyEmit(marshalErr))
	require.Equal(t, retry.Fatal, ClassifyEmit(fmt.Errorf("kafka emit failed: %w", sarama.ErrMessageSizeTooLarge)))
	require.Equal(t, retry.Fatal, ClassifyEmit(sarama.ConfigurationError("bad")))
	require.Equal(t, retry.Fatal, ClassifyEmit(context.Canceled))
	require.Equal(t, retry.Retryable, ClassifyEmit(fmt.Errorf("kafka emit failed: %w", sarama.ErrOutOfBrokers)))
}
