package scheduling

import (
	"errors"

	"github.com/lib/pq"
)

func isSerializationFailure(err error) bool {
	pgErr := &pq.Error{}
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
