package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/storage"
	"github.com/TheMichaelB/echoseal/test/testutil"
)

func BenchmarkRender(b *testing.B) {
	renderer := qr.NewRenderer(qr.LevelL, 15, 2)

	for _, size := range []int{16, 256, 1024} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			content := strings.Repeat("x", size)

			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := renderer.Render(content); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLocate(b *testing.B) {
	fixture := testutil.NewSealFixture(b, "meet at dawn", "swordfish")
	img, err := qr.DecodeImage(bytes.NewReader(fixture.PNG))
	if err != nil {
		b.Fatal(err)
	}

	locator := qr.NewLocator()
	for _, name := range locator.Strategies() {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				locator.LocateWith(img, name)
			}
		})
	}
}

func BenchmarkCreate(b *testing.B) {
	creator := seal.NewCreator(crypto.NewProvider())
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := creator.Create(ctx, seal.CreateRequest{Message: "meet at dawn", Password: "swordfish"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSealStoreSave(b *testing.B) {
	store, err := storage.NewSealStore(b.TempDir(), testutil.NewTestLogger())
	if err != nil {
		b.Fatal(err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 600, 600))

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.SavePNG(fmt.Sprintf("seal_%d.png", i), img); err != nil {
			b.Fatal(err)
		}
	}
}
