package server

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// unmarshalPointsListFast parses a JSON array of [x, y] pairs without
// going through encoding/json, which dominates the cost of large index
// uploads.
func unmarshalPointsListFast(data []byte) ([]orb.Point, error) {
	s := scanner{data: data}
	points := make([]orb.Point, 0, len(data)/16) // len/16 is a heuristic

	if !s.consume('[') {
		return nil, fmt.Errorf("invalid format: expected '['")
	}

	for {
		s.skipSpace()
		if s.consume(']') {
			return points, nil
		}

		if !s.consume('[') {
			return nil, fmt.Errorf("invalid format: expected '[' for point")
		}
		x, err := s.number()
		if err != nil {
			return nil, err
		}
		if !s.consume(',') {
			return nil, fmt.Errorf("invalid format: expected ',' between coordinates")
		}
		y, err := s.number()
		if err != nil {
			return nil, err
		}
		if !s.consume(']') {
			return nil, fmt.Errorf("invalid format: expected ']' at end of point")
		}
		points = append(points, orb.Point{x, y})

		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume(']') {
			return points, nil
		}
		if s.done() {
			return nil, fmt.Errorf("invalid format: unexpected end of input")
		}
	}
}

type scanner struct {
	data []byte
	i    int
}

func (s *scanner) done() bool {
	return s.i >= len(s.data)
}

func (s *scanner) skipSpace() {
	for !s.done() {
		switch s.data[s.i] {
		case ' ', '\n', '\t', '\r':
			s.i++
		default:
			return
		}
	}
}

func (s *scanner) consume(c byte) bool {
	s.skipSpace()
	if s.done() || s.data[s.i] != c {
		return false
	}
	s.i++
	return true
}

func (s *scanner) number() (float64, error) {
	s.skipSpace()
	start := s.i
	for !s.done() {
		c := s.data[s.i]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			s.i++
			continue
		}
		break
	}
	if start == s.i {
		return 0, fmt.Errorf("invalid format: expected number")
	}
	v, err := strconv.ParseFloat(string(s.data[start:s.i]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %v", err)
	}
	return v, nil
}

type generateRequest struct {
	Model  string  `json:"model"` // "threshold" or "exponential"
	Radius float64 `json:"radius"`
	Decay  float64 `json:"decay"`
}

func unmarshalGenerateRequest(data []byte) (generateRequest, error) {
	var req generateRequest
	err := json.Unmarshal(data, &req)
	return req, err
}
