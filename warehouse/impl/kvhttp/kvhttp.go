package kvhttp

import (
	"context"
	"io"
	"net/http"
	"net/url"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/warehouse"
)

var (
	_ warehouse.BlobstoreController = Controller{}
)

type Controller struct {
	addr    string // user's string retained for messages
	fullUrl *url.URL
	client  *http.Client
}

/*
Initialize a new warehouse controller that reads from an http(s) URL.

May return errors of category:

  - `labimg.ErrUsage` -- for unsupported addresses
*/
func NewController(addr string) (warehouse.BlobstoreController, error) {
	// Stamp out a warehouse handle.
	//  More values will be accumulated in shortly.
	whCtrl := Controller{
		addr:   addr,
		client: http.DefaultClient,
	}

	// Verify that the addr is sensible up front.
	u, err := url.Parse(addr)
	if err != nil {
		return whCtrl, Errorf(labimg.ErrUsage, "failed to parse URI: %s", err)
	}
	switch u.Scheme {
	case "http":
	case "https":
	default:
		return whCtrl, Errorf(labimg.ErrUsage, "unsupported scheme in warehouse addr: %q (valid options are 'http' or 'https')", u.Scheme)
	}
	whCtrl.fullUrl = u

	// We skip checking that the warehouse exists.
	//  It's as costly as just starting the actual download.

	return whCtrl, nil
}

func (whCtrl Controller) Addr() string { return whCtrl.addr }

func (whCtrl Controller) OpenReader(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", whCtrl.fullUrl.String(), nil)
	if err != nil {
		return nil, Errorf(labimg.ErrBuild, "error preparing request to %s: %s", whCtrl.addr, err)
	}
	resp, err := whCtrl.client.Do(req)
	if err != nil {
		if err := labimg.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		return nil, Errorf(labimg.ErrBuild, "error connecting to %s: %s", whCtrl.addr, err)
	}
	switch resp.StatusCode {
	case 200:
		return resp.Body, nil
	case 404:
		resp.Body.Close()
		return nil, Errorf(labimg.ErrBuild, "%s not found (HTTP 404)", whCtrl.addr)
	default:
		resp.Body.Close()
		return nil, Errorf(labimg.ErrBuild, "unexpected HTTP code from %s: %s", whCtrl.addr, resp.Status)
	}
}
