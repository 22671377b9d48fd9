package ctxio

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestReader(t *testing.T) {
	Convey("A context reader passes data through until cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		bs, err := ioutil.ReadAll(NewReader(ctx, strings.NewReader("data")))
		So(err, ShouldBeNil)
		So(string(bs), ShouldEqual, "data")

		cancel()
		_, err = ioutil.ReadAll(NewReader(ctx, strings.NewReader("data")))
		So(err, ShouldEqual, context.Canceled)
	})
}
