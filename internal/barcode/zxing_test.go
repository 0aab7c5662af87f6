package barcode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/camkit/internal/testutil"
)

func TestZXing_DecodesQR(t *testing.T) {
	img := testutil.QRFrame(t, "https://nyris.io/item/42", 320, 320)

	results, err := NewZXing().Decode(context.Background(), img, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, FormatQR, results[0].Format)
	assert.Equal(t, "https://nyris.io/item/42", results[0].Contents)
	assert.NotEmpty(t, results[0].Points)
	assert.False(t, results[0].BBox.Empty())
}

func TestZXing_FormatFilter(t *testing.T) {
	img := testutil.QRFrame(t, "filtered", 240, 240)

	_, err := NewZXing().Decode(context.Background(), img, Options{Formats: []Format{FormatEAN13}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZXing_NothingToFind(t *testing.T) {
	_, err := NewZXing().Decode(context.Background(), testutil.Frame(t, 160, 120), Options{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewZXing().Decode(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"qr":         FormatQR,
		"QR_CODE":    FormatQR,
		"ean-13":     FormatEAN13,
		"Code128":    FormatCode128,
		"i25":        FormatITF,
		"codabar":    FormatCodabar,
		"datamatrix": FormatDataMatrix,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("unknown")
	assert.Error(t, err)
	_, err = ParseFormats([]string{"qr", "bogus"})
	assert.Error(t, err)
}
