package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "", expected: nil},
		{name: "only separators", raw: " , ,", expected: nil},
		{name: "single", raw: "kafka-1:9092", expected: []string{"kafka-1:9092"}},
		{name: "trims", raw: " a , b,c ", expected: []string{"a", "b", "c"}},
		{name: "drops repeats keeping first", raw: "b,a,b,a", expected: []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.raw, ","))
		})
	}
}
