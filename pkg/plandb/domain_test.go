package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDomainIntersect(t *testing.T) {
	tests := []struct {
		name    string
		a, b    IntervalDomain
		want    IntervalDomain
		isEmpty bool
	}{
		{
			name: "overlapping ranges narrow to the shared band",
			a:    NewIntervalDomain(0, 10),
			b:    NewIntervalDomain(5, 20),
			want: NewIntervalDomain(5, 10),
		},
		{
			name: "disjoint ranges produce an empty domain",
			a:    NewIntervalDomain(0, 5),
			b:    NewIntervalDomain(10, 20),
			want: NewIntervalDomain(10, 5),
		},
		{
			name: "unbounded sentinel on one side still narrows",
			a:    NewIntervalDomain(NegInf, PosInf),
			b:    NewIntervalDomain(3, 7),
			want: NewIntervalDomain(3, 7),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Intersect(tt.b)
			assert.Equal(t, tt.want, got)
			if tt.want.IsEmpty() {
				assert.True(t, got.IsEmpty())
			}
		})
	}
}

func TestIntervalDomainRelax(t *testing.T) {
	got := NewIntervalDomain(2, 4).Relax(NewIntervalDomain(10, 12))
	assert.Equal(t, NewIntervalDomain(2, 12), got)
}

func TestIntervalDomainContains(t *testing.T) {
	d := NewIntervalDomain(1, 5)
	assert.True(t, d.Contains(1))
	assert.True(t, d.Contains(5))
	assert.False(t, d.Contains(0))
	assert.False(t, d.Contains(6))
	assert.False(t, NewIntervalDomain(5, 1).Contains(3))
}

func TestEnumDomainIntersectIsAlwaysClosed(t *testing.T) {
	open := NewOpenEnumDomain(8, []int{1, 2, 3})
	closedOther := NewEnumDomain(8, []int{2, 3, 4})

	got := open.Intersect(closedOther)

	assert.False(t, got.IsOpen())
	assert.Equal(t, []int{2, 3}, got.Members())
}

func TestEnumDomainRelaxRejectsClosedDomain(t *testing.T) {
	closed := NewEnumDomain(4, []int{1})
	_, err := closed.Relax(NewEnumDomain(4, []int{2}))
	require.Error(t, err)
}

func TestEnumDomainRelaxGrowsUniverse(t *testing.T) {
	open := NewOpenEnumDomain(2, []int{1})
	wider := NewEnumDomain(5, []int{5})

	got, err := open.Relax(wider)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 5}, got.Members())
}

func TestEnumDomainInsertGrowsAddressSpace(t *testing.T) {
	open := NewOpenEnumDomain(2, []int{1})

	got, err := open.Insert(9)

	require.NoError(t, err)
	assert.True(t, got.IsMember(9))
	assert.True(t, got.IsMember(1))
}

func TestEnumDomainInsertRejectsClosedDomain(t *testing.T) {
	closed := NewEnumDomain(4, []int{1})
	_, err := closed.Insert(2)
	require.Error(t, err)
}

func TestEnumDomainRemoveWorksOnOpenAndClosed(t *testing.T) {
	closed := NewEnumDomain(4, []int{1, 2, 3})
	assert.Equal(t, []int{1, 3}, closed.Remove(2).Members())

	open := NewOpenEnumDomain(4, []int{1, 2})
	removed := open.Remove(1)
	assert.True(t, removed.IsOpen())
	assert.Equal(t, []int{2}, removed.Members())
}

func TestEnumDomainCloseFreezesGrowth(t *testing.T) {
	open := NewOpenEnumDomain(4, []int{1})
	closed := open.Close()

	assert.False(t, closed.IsOpen())
	_, err := closed.Insert(2)
	require.Error(t, err)
}

func TestObjectDomainKeysAndMembership(t *testing.T) {
	keys := []Key{3, 7, 9}
	od := NewObjectDomain("Resource", 16, keys)

	assert.ElementsMatch(t, keys, od.Keys())
	assert.True(t, od.IsMemberKey(7))
	assert.False(t, od.IsMemberKey(8))
	assert.Equal(t, "Resource", od.TypeName)
}

func TestObjectDomainSingletonAfterIntersect(t *testing.T) {
	od := NewObjectDomain("Resource", 16, []Key{1, 2, 3})
	narrowed := od.EnumDomain.Intersect(NewEnumDomain(16, []int{2}))

	k, ok := narrowed.Singleton()
	require.True(t, ok)
	assert.Equal(t, 2, k)
}
