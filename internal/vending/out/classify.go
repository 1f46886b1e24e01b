package out

import (
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/web3-vending/internal/vending/retry"
)

// ClassifyEmit is the retry classifier for sink emits. Encoding failures,
// producer misconfiguration and oversized messages fail the same way on every
// resend.
func ClassifyEmit(err error) retry.Class {
	var (
		unsupported *json.UnsupportedTypeError
		badValue    *json.UnsupportedValueError
		marshaler   *json.MarshalerError
		config      sarama.ConfigurationError
	)
	switch {
	case errors.As(err, &unsupported), errors.As(err, &badValue), errors.As(err, &marshaler):
		return retry.Fatal
	case errors.As(err, &config):
		return retry.Fatal
	case errors.Is(err, sarama.ErrMessageSizeTooLarge), errors.Is(err, sarama.ErrInvalidMessage):
		return retry.Fatal
	}
	return retry.DefaultClassify(err)
}
