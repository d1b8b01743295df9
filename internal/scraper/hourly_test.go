package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHourlyExport(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)
	payload := "Hour\tConsumption\n" +
		"12 AM\t1.5\n" +
		"1 AM\t2\n" +
		"2 PM\t3.25\n" +
		"11 PM\t0\n"

	readings := parseHourlyExport(payload, date, loc)
	require.Len(t, readings, 4)

	assert.Equal(t, 1.5, readings[time.Date(2024, 6, 1, 0, 0, 0, 0, loc)])
	assert.Equal(t, 2.0, readings[time.Date(2024, 6, 1, 1, 0, 0, 0, loc)])
	assert.Equal(t, 3.25, readings[time.Date(2024, 6, 1, 14, 0, 0, 0, loc)])
	assert.Equal(t, 0.0, readings[time.Date(2024, 6, 1, 23, 0, 0, 0, loc)])
}

func TestParseHourlyExportMalformedRows(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)
	payload := "Hour\tConsumption\r\n" +
		"1 AM\t2.5\r\n" +
		"no tab here\r\n" +
		"25 AM\t3\r\n" +
		"2 AM\tnot-a-number\r\n" +
		"\r\n" +
		"3 AM\t4\r\n"

	readings := parseHourlyExport(payload, date, loc)
	require.Len(t, readings, 2)

	assert.Equal(t, 2.5, readings[time.Date(2024, 6, 1, 1, 0, 0, 0, loc)])
	assert.Equal(t, 4.0, readings[time.Date(2024, 6, 1, 3, 0, 0, 0, loc)])
}

func TestParseHourlyExportHeaderOnly(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	readings := parseHourlyExport("Hour\tConsumption\n", time.Date(2024, 6, 1, 0, 0, 0, 0, loc), loc)
	assert.Empty(t, readings)

	readings = parseHourlyExport("", time.Date(2024, 6, 1, 0, 0, 0, 0, loc), loc)
	assert.Empty(t, readings)
}

func TestFetchDay(t *testing.T) {
	portal := newFakePortal(t)
	portal.dayPayloads["06/01/2024"] = "Hour\tConsumption\n1 AM\t2\n2 AM\t3\n"
	client := newTestClient(t, portal)

	session, err := client.Login(context.Background())
	require.NoError(t, err)

	loc := client.Location()
	result := session.FetchDay(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, loc))
	require.False(t, result.Skipped, "reason: %s", result.Reason)
	require.Len(t, result.Readings, 2)

	assert.Equal(t, 2.0, result.Readings[time.Date(2024, 6, 1, 1, 0, 0, 0, loc)])
	assert.Equal(t, 3.0, result.Readings[time.Date(2024, 6, 1, 2, 0, 0, 0, loc)])
	assert.Equal(t, 1, portal.exportPosts)
}

func TestFetchDayTokensRotatePerDay(t *testing.T) {
	// The fake portal invalidates a token set once it is used, so two
	// consecutive day fetches only succeed if each one re-fetches the
	// usage page for fresh tokens
	portal := newFakePortal(t)
	portal.dayPayloads["06/01/2024"] = "Hour\tConsumption\n1 AM\t2\n"
	portal.dayPayloads["06/02/2024"] = "Hour\tConsumption\n1 AM\t5\n"
	client := newTestClient(t, portal)

	session, err := client.Login(context.Background())
	require.NoError(t, err)

	loc := client.Location()
	first := session.FetchDay(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, loc))
	require.False(t, first.Skipped, "reason: %s", first.Reason)

	second := session.FetchDay(context.Background(), time.Date(2024, 6, 2, 0, 0, 0, 0, loc))
	require.False(t, second.Skipped, "reason: %s", second.Reason)

	assert.Equal(t, 2, portal.exportPosts)
}

func TestFetchDayWrongContentType(t *testing.T) {
	// An expired session serves an HTML page instead of the export; that
	// must surface as a skipped day, not as bogus readings
	portal := newFakePortal(t)
	portal.wrongDownloadCT = true
	client := newTestClient(t, portal)

	session, err := client.Login(context.Background())
	require.NoError(t, err)

	result := session.FetchDay(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, client.Location()))
	require.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "content type")
	assert.Empty(t, result.Readings)
}

func TestFetchDayDownloadFailure(t *testing.T) {
	portal := newFakePortal(t)
	portal.failDates["06/01/2024"] = true
	client := newTestClient(t, portal)

	session, err := client.Login(context.Background())
	require.NoError(t, err)

	result := session.FetchDay(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, client.Location()))
	require.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "downloading export")
}
