package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp parses a single "HH:MM:SS,mmm" value.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if len(value) != len("00:00:00,000") || value[2] != ':' || value[5] != ':' || value[8] != ',' {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(value[0:2])
	minutes, errM := strconv.Atoi(value[3:5])
	seconds, errS := strconv.Atoi(value[6:8])
	millis, errMS := strconv.Atoi(value[9:12])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// ParseRange parses a timestamp range line into its start and end offsets.
func ParseRange(line string) (start, end time.Duration, err error) {
	if Classify(line) != TimestampRange {
		return 0, 0, fmt.Errorf("not a timestamp range: %q", TrimTerminator(line))
	}
	parts := strings.SplitN(line, "-->", 2)
	if start, err = ParseTimestamp(parts[0]); err != nil {
		return 0, 0, err
	}
	if end, err = ParseTimestamp(parts[1]); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
