package nepcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFromGregorian_KnownNewYearDays(t *testing.T) {
	cases := map[string]struct {
		ad   time.Time
		want string
	}{
		"epoch":   {date(1943, time.April, 14), "2000-01-01"},
		"BS 2072": {date(2015, time.April, 14), "2072-01-01"},
		"BS 2075": {date(2018, time.April, 14), "2075-01-01"},
		"BS 2077": {date(2020, time.April, 13), "2077-01-01"},
		"BS 2080": {date(2023, time.April, 14), "2080-01-01"},
		"BS 2082": {date(2025, time.April, 14), "2082-01-01"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := FromGregorian(tc.ad)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromGregorian_MidYear(t *testing.T) {
	// Ashwin 1, 2081 fell on 2024-09-17.
	got, err := FromGregorian(date(2024, time.September, 17))
	require.NoError(t, err)
	assert.Equal(t, "2081-06-01", got)

	// Day before a new year is the last day of Chaitra.
	got, err = FromGregorian(date(2025, time.April, 13))
	require.NoError(t, err)
	assert.Equal(t, "2081-12-30", got)
}

func TestFromGregorian_DayArithmetic(t *testing.T) {
	got, err := FromGregorian(date(1943, time.April, 15))
	require.NoError(t, err)
	assert.Equal(t, "2000-01-02", got)

	// First month of BS 2000 has 30 days.
	got, err = FromGregorian(date(1943, time.May, 14))
	require.NoError(t, err)
	assert.Equal(t, "2000-02-01", got)
}

func TestFromGregorian_OutOfRange(t *testing.T) {
	_, err := FromGregorian(date(1943, time.April, 13))
	require.Error(t, err)

	_, err = FromGregorian(date(2200, time.January, 1))
	require.Error(t, err)
}

func TestToday_InRange(t *testing.T) {
	got, err := Today()
	require.NoError(t, err)
	assert.Regexp(t, `^20[0-9]{2}-[0-9]{2}-[0-9]{2}$`, got)
}
