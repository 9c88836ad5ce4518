package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"schoology-export/internal/components/telemetry"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDocument = `<html><body>
<input id="name" value="placeholder">
<select id="mode">
	<option value="0">off</option>
	<option value="1" selected>on</option>
</select>
<button id="go" onclick="document.getElementById('out').textContent = document.getElementById('name').value + ':' + document.getElementById('mode').value">go</button>
<p id="out"></p>
</body></html>`

func setupBrowser(t *testing.T) *Browser {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	chrome, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "chromedp/headless-shell:latest",
				ExposedPorts: []string{"9222/tcp"},
				WaitingFor:   wait.ForListeningPort("9222/tcp"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = chrome.Terminate(context.Background())
	})

	host, err := chrome.Host(ctx)
	require.NoError(t, err)
	port, err := chrome.MappedPort(ctx, "9222/tcp")
	require.NoError(t, err)

	b, err := Launch(ctx, Options{
		RemoteURL:    fmt.Sprintf("%s:%s", host, port.Port()),
		ImplicitWait: time.Second,
		Settle:       time.Second,
	}, telemetry.SlogAPI{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
	})
	return b
}

func TestRodPage(t *testing.T) {
	b := setupBrowser(t)
	ctx := context.Background()

	page, err := b.NewSession(ctx)
	require.NoError(t, err)
	defer page.Close()

	err = page.Navigate(ctx, "data:text/html,"+url.PathEscape(testDocument))
	require.NoError(t, err)

	found, err := page.Has(ctx, "#name")
	require.NoError(t, err)
	require.True(t, found)
	found, err = page.Has(ctx, "#missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, page.Input(ctx, "#name", "quiz"))
	require.NoError(t, page.Select(ctx, "#mode", "0"))
	require.NoError(t, page.Click(ctx, "#go"))

	err = WaitUntil(ctx, 5*time.Second, 50*time.Millisecond, "output", func(ctx context.Context) (bool, error) {
		html, err := page.HTML(ctx)
		return bytes.Contains([]byte(html), []byte(`<p id="out">quiz:0</p>`)), err
	})
	require.NoError(t, err)

	err = page.Click(ctx, "#missing")
	require.ErrorIs(t, err, ErrElementNotFound)

	// lookups release their implicit wait once they return, the page keeps working
	// well past it
	for i := 0; i < 20; i++ {
		require.NoError(t, page.Input(ctx, "#name", "again"))
	}
	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, page.Click(ctx, "#go"))
	err = WaitUntil(ctx, 5*time.Second, 50*time.Millisecond, "second output", func(ctx context.Context) (bool, error) {
		html, err := page.HTML(ctx)
		return bytes.Contains([]byte(html), []byte(`<p id="out">again:0</p>`)), err
	})
	require.NoError(t, err)

	pdf, err := page.PDF(ctx)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
