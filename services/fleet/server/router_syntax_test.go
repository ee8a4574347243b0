// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typefleet/typefleet/services/fleet/protocol"
)

func newTestRouter(dynamic bool) (*SyntaxRouter, *fakeBranch, *fakeBranch) {
	syntax := newFakeBranch("syntax", KindSyntax)
	semantic := newFakeBranch("semantic", KindSemantic)
	return NewSyntaxRouter(syntax, semantic, dynamic), syntax, semantic
}

func TestSyntaxRouter_InitialState(t *testing.T) {
	dynamic, _, _ := newTestRouter(true)
	assert.Equal(t, StateLoading, dynamic.State(), "dynamic routing starts loading")

	static, _, _ := newTestRouter(false)
	assert.Equal(t, StateLoaded, static.State(), "static split never waits for load")
}

func TestSyntaxRouter_SyntaxEligibleAlwaysGoesSyntax(t *testing.T) {
	for _, dynamic := range []bool{true, false} {
		r, syntax, semantic := newTestRouter(dynamic)

		_, err := r.Execute(context.Background(), protocol.NewRequest(1, "navtree", nil))
		require.NoError(t, err)

		assert.Equal(t, []string{"navtree"}, syntax.executedCommands())
		assert.Empty(t, semantic.executedCommands())
	}
}

func TestSyntaxRouter_SemanticPinnedEvenWhileLoading(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)
	require.Equal(t, StateLoading, r.State())

	_, err := r.Execute(context.Background(), protocol.NewRequest(1, "geterr", nil))
	require.NoError(t, err)

	assert.Empty(t, syntax.executedCommands())
	assert.Equal(t, []string{"geterr"}, semantic.executedCommands())
}

func TestSyntaxRouter_BorderlinePromotionOnLoadCompletion(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	// quickinfo is unclassified: borderline while loading.
	_, err := r.Execute(context.Background(), protocol.NewRequest(1, "quickinfo", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"quickinfo"}, syntax.executedCommands())

	// Synthetic load-completion on the semantic branch.
	semantic.emit(protocol.EventProjectLoadingFinish)
	require.Eventually(t, func() bool { return r.State() == StateLoaded },
		2*time.Second, 5*time.Millisecond)

	_, err = r.Execute(context.Background(), protocol.NewRequest(2, "quickinfo", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"quickinfo"}, semantic.executedCommands(),
		"borderline requests promote to semantic after load")
}

func TestSyntaxRouter_TransitionIsOneWay(t *testing.T) {
	r, _, semantic := newTestRouter(true)

	semantic.emit(protocol.EventProjectLoadingFinish)
	require.Eventually(t, func() bool { return r.State() == StateLoaded },
		2*time.Second, 5*time.Millisecond)

	// A duplicate completion event must not flip anything back.
	semantic.emit(protocol.EventProjectLoadingFinish)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateLoaded, r.State())
}

func TestSyntaxRouter_StaticIgnoresLoadEventForRouting(t *testing.T) {
	r, syntax, semantic := newTestRouter(false)

	// Unclassified goes semantic from the start.
	_, err := r.Execute(context.Background(), protocol.NewRequest(1, "quickinfo", nil))
	require.NoError(t, err)
	assert.Empty(t, syntax.executedCommands())
	assert.Equal(t, []string{"quickinfo"}, semantic.executedCommands())

	// Syntax-eligible still splits off: the split is by request class,
	// not by load state.
	_, err = r.Execute(context.Background(), protocol.NewRequest(2, "format", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"format"}, syntax.executedCommands())
}

func TestSyntaxRouter_SharedCommandsMirrorToSyntax(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	resp, err := r.Execute(context.Background(), protocol.NewRequest(1, "open", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"open"}, syntax.notifiedCommands(),
		"document state mirrored to the syntax branch")
	assert.Equal(t, []string{"open"}, semantic.executedCommands(),
		"semantic branch owns the response")
	assert.Contains(t, string(resp.Body), "semantic")

	require.NoError(t, r.Notify(protocol.NewRequest(2, "change", nil)))
	assert.Equal(t, []string{"open", "change"}, syntax.notifiedCommands())
	assert.Equal(t, []string{"change"}, semantic.notifiedCommands())
}

func TestSyntaxRouter_EventsMerged(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	syntax.emit(protocol.EventSyntaxDiag)
	semantic.emit(protocol.EventSemanticDiag)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-r.Events():
			seen[ev.Event] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for merged events")
		}
	}
	assert.True(t, seen[protocol.EventSyntaxDiag])
	assert.True(t, seen[protocol.EventSemanticDiag])
}

func TestSyntaxRouter_CancelFollowsRoute(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	release := make(chan struct{})
	syntax.block = release

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Execute(context.Background(), protocol.NewRequest(9, "navtree", nil))
	}()

	// Wait for the request to be in flight, then cancel it.
	require.Eventually(t, func() bool { return len(syntax.executedCommands()) == 1 },
		2*time.Second, time.Millisecond)
	assert.True(t, r.Cancel(9))
	assert.Equal(t, []int64{9}, syntax.cancelledSeqs())
	assert.Empty(t, semantic.cancelledSeqs())

	close(release)
	<-done

	// Completed or unknown requests report false.
	assert.False(t, r.Cancel(9))
	assert.False(t, r.Cancel(12345))
}

func TestSyntaxRouter_TerminateBothIdempotent(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	require.NoError(t, r.Terminate())
	require.NoError(t, r.Terminate())

	assert.Equal(t, 1, syntax.terminations)
	assert.Equal(t, 1, semantic.terminations)
}

func TestSyntaxRouter_BranchExitDoesNotCascade(t *testing.T) {
	r, syntax, semantic := newTestRouter(true)

	// The syntax branch dies on its own.
	syntax.closeEvents()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, semantic.terminations,
		"a routing server observing one branch's exit must not tear down the other")

	// The semantic branch keeps answering.
	_, err := r.Execute(context.Background(), protocol.NewRequest(1, "geterr", nil))
	assert.NoError(t, err)
}
