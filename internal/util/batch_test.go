package util

import (
	"reflect"
	"testing"
)

func TestBatchSplitsIntoChunksPreservingOrder(t *testing.T) {
	got := Batch([]int{1, 2, 3, 4, 5}, 2)
	want := [][]int{{1, 2}, {3, 4}, {5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Batch() = %v, want %v", got, want)
	}
}

func TestBatchZeroSizeReturnsOneChunk(t *testing.T) {
	got := Batch([]string{"a", "b", "c"}, 0)
	want := [][]string{{"a", "b", "c"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Batch() = %v, want %v", got, want)
	}
}

func TestBatchEmptyInputReturnsNil(t *testing.T) {
	if got := Batch[int](nil, 3); got != nil {
		t.Fatalf("Batch(nil) = %v, want nil", got)
	}
}
