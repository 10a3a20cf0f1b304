// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

func TestEmitter_SubscribeAndEmit(t *testing.T) {
	e := NewEmitter(WithFilterName("inbox"))

	var got []Event
	id := e.Subscribe(func(ev *Event) { got = append(got, *ev) })
	require.NotEmpty(t, id)
	assert.Equal(t, 1, e.SubscriptionCount())

	ev := e.Emit(TypeSaved, FilterData{Expression: "OR[a]"})
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, "inbox", got[0].Filter)
	assert.Equal(t, uint64(1), got[0].Sequence)
	assert.NotZero(t, got[0].Timestamp)

	assert.True(t, e.Unsubscribe(id))
	assert.False(t, e.Unsubscribe(id))
	e.Emit(TypeSaved, nil)
	assert.Len(t, got, 1)
}

func TestEmitter_TypeAndCustomFilters(t *testing.T) {
	e := NewEmitter()

	var inserts, removesAtRoot int
	e.Subscribe(func(*Event) { inserts++ }, TypeBeginInsert, TypeEndInsert)
	e.SubscribeWithFilter(func(*Event) { removesAtRoot++ }, func(ev *Event) bool {
		d, ok := ev.Data.(ChangeData)
		return ok && d.ParentPath == ""
	}, TypeEndRemove)

	e.Emit(TypeBeginInsert, ChangeData{})
	e.Emit(TypeEndInsert, ChangeData{})
	e.Emit(TypeEndRemove, ChangeData{ParentPath: "1"})
	e.Emit(TypeEndRemove, ChangeData{ParentPath: ""})

	assert.Equal(t, 2, inserts)
	assert.Equal(t, 1, removesAtRoot)
}

func TestEmitter_HandlerPanicIsRecovered(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(func(*Event) { panic("boom") })
	e.Subscribe(func(*Event) { called = true })

	assert.NotPanics(t, func() { e.Emit(TypeSaved, nil) })
	assert.True(t, called)
}

func TestEmitter_Buffer(t *testing.T) {
	e := NewEmitter(WithBufferSize(2))
	e.Emit(TypeBeginInsert, nil)
	e.Emit(TypeEndInsert, nil)
	e.Emit(TypeSaved, nil)

	buf := e.GetBuffer()
	require.Len(t, buf, 2)
	assert.Equal(t, uint64(2), buf[0].Sequence)
	assert.Equal(t, uint64(3), buf[1].Sequence)

	assert.Len(t, e.GetBufferSince(2), 1)
	assert.Len(t, e.GetBufferByType(TypeSaved), 1)
	assert.Equal(t, uint64(3), e.Sequence())

	e.Reset()
	assert.Empty(t, e.GetBuffer())
	assert.Equal(t, 0, e.SubscriptionCount())
}

func TestEmitter_ObservesTree(t *testing.T) {
	e := NewEmitter()
	tree := tagfilter.NewTree()
	tree.Observe(e)

	a, err := tree.InsertLeaf("a", nil, -1)
	require.NoError(t, err)
	_, err = tree.InsertLeaf("b", nil, -1)
	require.NoError(t, err)
	require.NoError(t, tree.Move([]*tagfilter.Node{a}, nil, 2))

	buf := e.GetBuffer()
	types := make([]Type, len(buf))
	for i, ev := range buf {
		types[i] = ev.Type
	}
	assert.Equal(t, []Type{
		TypeBeginInsert, TypeEndInsert,
		TypeBeginInsert, TypeEndInsert,
		TypeBeginMove, TypeEndMove,
	}, types)

	move := buf[4].Data.(ChangeData)
	assert.Equal(t, "move", move.Op)
	assert.Equal(t, "", move.DestPath)
	assert.Equal(t, 2, move.DestIndex)
	assert.Equal(t, "OR[b,a]", tree.String())
}

func TestEmitter_ConcurrentEmit(t *testing.T) {
	e := NewEmitter(WithBufferSize(10))
	var mu sync.Mutex
	count := 0
	e.Subscribe(func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(TypeSaved, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.Equal(t, uint64(20), e.Sequence())
	assert.Len(t, e.GetBuffer(), 10)
}
