package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on topic length in bytes.
const maxTopicLength = 65535

// ValidatePublishTopic checks that topic is a concrete topic name.
// Wildcards are only valid in subscription filters.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: %q contains a NUL character", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks a subscription filter.
//
// "+" must occupy a whole level and "#" must be the whole last level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if len(filter) > maxTopicLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrInvalidTopic, len(filter), maxTopicLength)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: %q has a misplaced multi-level wildcard", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: %q has a misplaced single-level wildcard", ErrInvalidTopic, filter)
		}
	}
	return nil
}
