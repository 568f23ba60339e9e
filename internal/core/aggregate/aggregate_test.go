package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type listing struct {
	city  string
	price decimal.Decimal
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func cityOf(l listing) string           { return l.city }
func priceOf(l listing) decimal.Decimal { return l.price }

func TestAggregate_CityPriceExample(t *testing.T) {
	records := []listing{
		{city: "Madrid", price: price(10)},
		{city: "Madrid", price: price(20)},
		{city: "Lisboa", price: price(5)},
	}

	buckets, err := Aggregate(records, cityOf, priceOf, Options{TopN: 10, SortBy: SortBySum})
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	require.Equal(t, "Madrid", buckets[0].Key)
	require.Equal(t, int64(2), buckets[0].Count)
	require.True(t, buckets[0].Sum.Equal(price(30)))
	require.True(t, buckets[0].Average.Equal(price(15)))

	require.Equal(t, "Lisboa", buckets[1].Key)
	require.Equal(t, int64(1), buckets[1].Count)
	require.True(t, buckets[1].Sum.Equal(price(5)))
	require.True(t, buckets[1].Average.Equal(price(5)))
}

func TestAggregate_EveryRecordCounted(t *testing.T) {
	records := []listing{
		{city: "Madrid", price: price(10)},
		{city: "", price: price(3)},
		{city: "Lisboa", price: price(5)},
		{city: "", price: price(7)},
		{city: "Porto", price: price(-2)},
	}

	buckets, err := Aggregate(records, cityOf, priceOf, Options{})
	require.NoError(t, err)
	require.Equal(t, int64(len(records)), TotalCount(buckets))

	var unknown *Bucket
	for i := range buckets {
		if buckets[i].Key == UnknownKey {
			unknown = &buckets[i]
		}
	}
	require.NotNil(t, unknown, "empty-dimension records must group under the sentinel key")
	require.Equal(t, int64(2), unknown.Count)
	require.True(t, unknown.Sum.Equal(price(10)))
}

func TestAggregate_StableRanking(t *testing.T) {
	// Three cities with the same sum: ties keep first-seen order.
	records := []listing{
		{city: "Bilbao", price: price(10)},
		{city: "Sevilla", price: price(10)},
		{city: "Valencia", price: price(10)},
		{city: "Madrid", price: price(99)},
	}

	first, err := Aggregate(records, cityOf, priceOf, Options{SortBy: SortBySum})
	require.NoError(t, err)
	second, err := Aggregate(records, cityOf, priceOf, Options{SortBy: SortBySum})
	require.NoError(t, err)

	keys := func(bs []Bucket) []string {
		out := make([]string, len(bs))
		for i, b := range bs {
			out[i] = b.Key
		}
		return out
	}
	require.Equal(t, []string{"Madrid", "Bilbao", "Sevilla", "Valencia"}, keys(first))
	require.Equal(t, keys(first), keys(second))
}

func TestAggregate_TruncateAfterSort(t *testing.T) {
	records := []listing{
		{city: "Lisboa", price: price(1)},
		{city: "Madrid", price: price(100)},
		{city: "Porto", price: price(50)},
	}

	buckets, err := Aggregate(records, cityOf, priceOf, Options{TopN: 2, SortBy: SortBySum})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, "Madrid", buckets[0].Key)
	require.Equal(t, "Porto", buckets[1].Key)
}

func TestAggregate_SortMeasures(t *testing.T) {
	records := []listing{
		{city: "Madrid", price: price(2)},
		{city: "Madrid", price: price(2)},
		{city: "Madrid", price: price(2)},
		{city: "Lisboa", price: price(9)},
	}

	bySum, err := Aggregate(records, cityOf, priceOf, Options{SortBy: SortByCount})
	require.NoError(t, err)
	require.Equal(t, "Madrid", bySum[0].Key)

	byAvg, err := Aggregate(records, cityOf, priceOf, Options{SortBy: SortByAverage})
	require.NoError(t, err)
	require.Equal(t, "Lisboa", byAvg[0].Key)
}

func TestAggregate_EmptyAndInvalidInput(t *testing.T) {
	buckets, err := Aggregate(nil, cityOf, priceOf, Options{TopN: 10})
	require.NoError(t, err)
	require.Empty(t, buckets)

	_, err = Aggregate([]listing{{city: "Madrid"}}, cityOf, priceOf, Options{SortBy: "median"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Aggregate([]listing{{city: "Madrid"}}, cityOf, priceOf, Options{TopN: -1})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Aggregate([]listing{{city: "Madrid"}}, nil, priceOf, Options{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAggregate_RoundingOnlyAtPresentation(t *testing.T) {
	records := []listing{
		{city: "Madrid", price: price(1)},
		{city: "Madrid", price: price(2)},
	}

	buckets, err := Aggregate(records, cityOf, priceOf, Options{})
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	want, _ := decimal.NewFromString("1.5")
	require.True(t, buckets[0].Average.Equal(want), "stored average keeps full precision")
	require.True(t, buckets[0].DisplayAverage().Equal(price(2)))
}
