package postgresadapter

import "time"

// SystemClock stamps replica writes with wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
