package support

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/cucumber/godog"
)

// aPortraitPhotoWithQRCodes writes a 480x640 upright photo with one QR code
// on the upper half and one on the lower half of the screen. On the default
// 1080x1920 portrait view the halves are the rectangles 0,0,1080,1080 and
// 0,1080,1080,1920.
func (testCtx *TestContext) aPortraitPhotoWithQRCodes(name, top, bottom string) error {
	topCode, err := testutil.EncodeQRCode(top, 200)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", top, err)
	}
	bottomCode, err := testutil.EncodeQRCode(bottom, 200)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", bottom, err)
	}
	scene := testutil.Scene(480, 640,
		testutil.Placement{Symbol: topCode, At: image.Pt(140, 100)},
		testutil.Placement{Symbol: bottomCode, At: image.Pt(140, 410)},
	)
	return testCtx.saveImage(name, scene)
}

// aPhotoWithOneQRCode writes a 480x640 upright photo with a centered QR code.
func (testCtx *TestContext) aPhotoWithOneQRCode(name, text string) error {
	code, err := testutil.EncodeQRCode(text, 200)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", text, err)
	}
	return testCtx.saveImage(name, testutil.Scene(480, 640, testutil.Placement{Symbol: code, At: image.Pt(140, 220)}))
}

// aBlankFrame writes a white frame without any symbol.
func (testCtx *TestContext) aBlankFrame(name string) error {
	return testCtx.saveImage(name, testutil.Scene(640, 480))
}

func (testCtx *TestContext) saveImage(name string, img image.Image) error {
	path := testCtx.TempPath(name + ".png")
	if err := testutil.SavePNG(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	testCtx.Variables[name] = path
	return nil
}

// RegisterImageSteps registers steps that create test frames. A frame named
// "photo" is referenced in commands as {photo}.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a portrait photo "([^"]*)" with QR codes "([^"]*)" on top and "([^"]*)" at the bottom$`,
		testCtx.aPortraitPhotoWithQRCodes)
	sc.Step(`^a photo "([^"]*)" with QR code "([^"]*)"$`, testCtx.aPhotoWithOneQRCode)
	sc.Step(`^a blank frame "([^"]*)"$`, testCtx.aBlankFrame)
}
