package quantum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestParseDistribution(t *testing.T) {
	testCases := []struct {
		name     string
		replies  []Reply
		n        int
		want     Distribution
		wantFail bool
	}{
		{
			name:    "object",
			replies: []Reply{{Probability: json.RawMessage(`{"11": 0.4, "01": 0.6}`)}},
			n:       2,
			want:    Distribution{"11": 0.4, "01": 0.6},
		},
		{
			name:    "json string",
			replies: []Reply{{Probability: json.RawMessage(`"{\"1\": 0.25, \"0\": 0.75}"`)}},
			n:       1,
			want:    Distribution{"1": 0.25, "0": 0.75},
		},
		{name: "no replies", replies: nil, n: 1, wantFail: true},
		{name: "missing probability", replies: []Reply{{}}, n: 1, wantFail: true},
		{name: "null probability", replies: []Reply{{Probability: json.RawMessage(`null`)}}, n: 1, wantFail: true},
		{name: "garbage", replies: []Reply{{Probability: json.RawMessage(`"not json"`)}}, n: 1, wantFail: true},
		{name: "wrong width", replies: []Reply{{Probability: json.RawMessage(`{"111": 1}`)}}, n: 2, wantFail: true},
		{name: "non binary key", replies: []Reply{{Probability: json.RawMessage(`{"12": 1}`)}}, n: 2, wantFail: true},
		{name: "probability above one", replies: []Reply{{Probability: json.RawMessage(`{"1": 1.5}`)}}, n: 1, wantFail: true},
		{name: "negative probability", replies: []Reply{{Probability: json.RawMessage(`{"1": -0.1}`)}}, n: 1, wantFail: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dist, err := parseDistribution(tc.replies, tc.n)
			if tc.wantFail {
				var respErr *BackendResponseError
				require.ErrorAs(t, err, &respErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, dist)
		})
	}
}

func TestExecutorRejectsOversizedCircuitWithoutCallingBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	backend.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	x := NewExecutor(backend, 2, "tianyan_swn", 2048, nil)
	_, err := x.Execute(context.Background(), BuildCircuit([]float64{0.1, 0.2, 0.3}, 2))

	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.Active)
	assert.Equal(t, 2, capErr.Capacity)
}

func TestExecutorClassifiesBackendErrors(t *testing.T) {
	circuit := BuildCircuit([]float64{0.1}, 16)

	t.Run("submit transport failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		backend.EXPECT().Submit(gomock.Any(), circuit, 1024).Return("", errors.New("connection reset"))

		_, err := NewExecutor(backend, 16, "m", 1024, nil).Execute(context.Background(), circuit)
		var commErr *BackendCommunicationError
		require.ErrorAs(t, err, &commErr)
		assert.Equal(t, "submit", commErr.Op)
	})

	t.Run("fetch malformed envelope", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		gomock.InOrder(
			backend.EXPECT().Submit(gomock.Any(), circuit, 1024).Return("q-1", nil),
			backend.EXPECT().Fetch(gomock.Any(), "q-1").Return(nil, fmt.Errorf("decode: %w", ErrMalformedReply)),
		)

		_, err := NewExecutor(backend, 16, "m", 1024, nil).Execute(context.Background(), circuit)
		var respErr *BackendResponseError
		require.ErrorAs(t, err, &respErr)
	})

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := NewMockBackend(ctrl)
		gomock.InOrder(
			backend.EXPECT().Submit(gomock.Any(), circuit, 1024).Return("q-2", nil),
			backend.EXPECT().Fetch(gomock.Any(), "q-2").Return([]Reply{{Probability: json.RawMessage(`{"1": 0.3, "0": 0.7}`)}}, nil),
		)

		dist, err := NewExecutor(backend, 16, "m", 1024, nil).Execute(context.Background(), circuit)
		require.NoError(t, err)
		assert.Equal(t, 0.3, MasteryScore(dist, 1))
	})
}

func TestMasteryScore(t *testing.T) {
	dist := Distribution{"1111": 0.62, "0000": 0.2, "0111": 0.18}
	assert.Equal(t, 0.62, MasteryScore(dist, 4))
	assert.Equal(t, 0.0, MasteryScore(Distribution{"000": 1}, 3))
	assert.Equal(t, 0.0, MasteryScore(nil, 2))
}
