package server

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/paulmach/orb"
)

func TestUnmarshalPointsListFast(t *testing.T) {
	tests := []struct {
		data []byte
		want []orb.Point
	}{
		{[]byte(`[]`), []orb.Point{}},
		{[]byte(`[[1, 2]]`), []orb.Point{{1, 2}}},
		{[]byte(`[[1,2], [3,4]]`), []orb.Point{{1, 2}, {3, 4}}},
		{[]byte(`[[1,2.1], [3,4]]`), []orb.Point{{1, 2.1}, {3, 4}}},
		{[]byte(`[[-1.4, -1],[-0, 1]]`), []orb.Point{{-1.4, -1}, {0, 1}}},
		{[]byte(`[[3e-1, 0.1], [3.1, -1]]`), []orb.Point{{0.3, 0.1}, {3.1, -1}}},
	}

	for _, tt := range tests {
		res, err := unmarshalPointsListFast(tt.data)
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if !slices.Equal(tt.want, res) {
			t.Fatalf("result expected %v; got %v", tt.want, res)
		}
	}
}

func TestUnmarshalPointsListFastErrors(t *testing.T) {
	for _, bad := range []string{``, `[[1,2]`, `[[1 2]]`, `[[a, -0],[0, 2]]`, `{}`} {
		if _, err := unmarshalPointsListFast([]byte(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func FuzzUnmarshalPointsListFast(f *testing.F) {
	f.Add([]byte(`[]`))
	f.Add([]byte(`[[1,2]]`))
	f.Add([]byte(`[[1,2],[3,4]]`))
	f.Add([]byte(`[[1,2.1],[3,4,5]]`))
	f.Add([]byte(`[[-1.4, -1],[-0, 1]]`))
	f.Add([]byte(`[[a, -0],[0, 2]]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var jsonRes [][2]float64
		jsonErr := json.Unmarshal(data, &jsonRes)

		fastRes, fastErr := unmarshalPointsListFast(data)
		if jsonErr == nil && fastErr != nil {
			return // the fast parser is allowed to be stricter
		}
		if fastErr != nil {
			return
		}
		if len(fastRes) != len(jsonRes) {
			t.Fatalf("expected %d points, got %d", len(jsonRes), len(fastRes))
		}
	})
}

func BenchmarkUnmarshalPoints(b *testing.B) {
	data := []byte(`[[1,2], [3,4], [5,6], [7,8], [9,10]]`)

	b.Run("json", func(b *testing.B) {
		var res [][2]float64
		for i := 0; i < b.N; i++ {
			err := json.Unmarshal(data, &res)
			if err != nil {
				b.Fatalf("unexpected error: %s", err.Error())
			}
		}
	})

	b.Run("fast", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, err := unmarshalPointsListFast(data)
			if err != nil {
				b.Fatalf("unexpected error: %s", err.Error())
			}
		}
	})
}
