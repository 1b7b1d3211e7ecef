// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsNonPositiveBuffer(t *testing.T) {
	require.Equal(t, 32, cap(New(0)))
	require.Equal(t, 32, cap(New(-5)))
	require.Equal(t, 8, cap(New(8)))
}

func TestEmitNilStreamDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		Emit(nil, Event{Kind: KindRunStarted})
	})
}

func TestEmitDropsWhenFull(t *testing.T) {
	s := New(1)
	Emit(s, Event{Kind: KindRunStarted})
	Emit(s, Event{Kind: KindVMStarted}) // must not block

	ev := <-s
	require.Equal(t, KindRunStarted, ev.Kind)
	require.Len(t, s, 0)
}

func TestEmitDeliversWhenRoom(t *testing.T) {
	s := New(2)
	Emit(s, Event{Kind: KindScored, Score: 80, MaxScore: 100})

	ev := <-s
	require.Equal(t, KindScored, ev.Kind)
	require.Equal(t, 80, ev.Score)
	require.Equal(t, 100, ev.MaxScore)
}
