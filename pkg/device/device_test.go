package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pupsensor/pkg/lpf2"
)

func TestDefaultDevice(t *testing.T) {
	d := New()
	info := d.Snapshot()
	require.Equal(t, byte(0xab), info.ID)
	require.Equal(t, uint32(0x10000000), info.FwVersion)
	require.Equal(t, uint32(0x10000000), info.HwVersion)
	require.Equal(t, uint16(0), info.CombiCaps)
	require.Equal(t, 0, info.SelectedMode)
	require.Len(t, info.Modes, 1)
	m := info.Modes[0]
	require.Equal(t, "M0", m.Name)
	require.Equal(t, Format{Items: 1, Type: lpf2.Int8, Width: 3}, m.Format)
	require.Equal(t, []float64{0}, m.Data)
	require.Equal(t, 1, m.DataSize())
}

func TestSetters(t *testing.T) {
	d := New()

	d.SetID(-1)
	require.Equal(t, byte(0), d.ID())
	d.SetID(300)
	require.Equal(t, byte(0xff), d.ID())

	d.SetCombiCaps(0x10000)
	require.Equal(t, uint16(0), d.CombiCaps())
	d.SetCombiCaps(0x0003)
	require.Equal(t, uint16(3), d.CombiCaps())

	d.SetDefaultMode(16)
	require.Equal(t, 0, d.SelectedMode())
	d.SetDefaultMode(5)
	require.Equal(t, 5, d.SelectedMode())
	require.False(t, d.SelectMode(5))
	require.True(t, d.SelectMode(0))
	require.Equal(t, 0, d.SelectedMode())

	d.SetModeName(0, "ABCDEFGHIJKLMN")
	d.SetModeUnit(0, "0123456789XYZ")
	d.SetModeName(3, "NOPE")
	m := d.Mode(0)
	require.Equal(t, "ABCDEFGHIJK", m.Name)
	require.Equal(t, "0123456789", m.Unit)
	require.Nil(t, d.Mode(3))

	d.SetModeFormat(0, 12, lpf2.DataType(9), 99, -1)
	require.Equal(t, Format{Items: 8, Type: lpf2.Int8, Width: 40, Decimals: 0}, d.Mode(0).Format)
	require.Len(t, d.Mode(0).Data, 8)

	d.SetMapping(0, 0x100, 0)
	require.Nil(t, d.Mode(0).Mapping)
	d.SetMapping(0, 0xe4, 0x10)
	require.Equal(t, &Mapping{In: 0xe4, Out: 0x10}, d.Mode(0).Mapping)

	d.SetRawRange(0, 0, 1023)
	d.SetPctRange(0, 0, 100)
	d.SetSIRange(0, -1, 1)
	m = d.Mode(0)
	require.Equal(t, &Range{Min: 0, Max: 1023}, m.Raw)
	require.Equal(t, &Range{Min: 0, Max: 100}, m.Pct)
	require.Equal(t, &Range{Min: -1, Max: 1}, m.SI)
}

func TestModeData(t *testing.T) {
	d := New()
	require.True(t, d.SetModeData(0, 0, 5))
	require.False(t, d.SetModeData(0, 1, 5))
	require.False(t, d.SetModeData(1, 0, 5))
	require.Equal(t, float64(5), d.ModeData(0, 0))
	require.Equal(t, float64(0), d.ModeData(0, 1))
	require.Equal(t, float64(0), d.ModeData(4, 0))

	d.SetModeFormat(0, 3, lpf2.Int16, 5, 0)
	require.True(t, d.WriteModeData(0, []float64{1, 2, 3}))
	require.Equal(t, []float64{1, 2, 3}, d.Mode(0).Data)
	require.False(t, d.WriteModeData(2, []float64{1}))
}

func TestModeCount(t *testing.T) {
	d := New()
	d.SetModeCount(0)
	d.SetModeCount(17)
	require.Equal(t, 1, d.ModeCount())

	d.SetModeName(0, "KEEP")
	d.SetModeCount(4)
	require.Equal(t, 4, d.ModeCount())
	require.Equal(t, "KEEP", d.Mode(0).Name)
	require.Equal(t, "M3", d.Mode(3).Name)
	require.Equal(t, 3, d.Mode(3).Index)

	d.SetModeCount(2)
	require.Equal(t, 2, d.ModeCount())
	require.Equal(t, "KEEP", d.Mode(0).Name)
	require.Nil(t, d.Mode(2))
}

func TestSnapshotIsCopy(t *testing.T) {
	d := New()
	d.SetRawRange(0, 0, 10)
	info := d.Snapshot()
	info.Modes[0].Data[0] = 42
	info.Modes[0].Raw.Max = 99
	require.Equal(t, float64(0), d.ModeData(0, 0))
	require.Equal(t, float32(10), d.Mode(0).Raw.Max)
}

func TestCombi(t *testing.T) {
	d := New()
	d.SetModeCount(2)
	d.SetModeFormat(1, 4, lpf2.Float32, 8, 2)

	require.Equal(t, ErrCombiIndex, d.SetCombi(8, nil))
	require.Equal(t, ErrCombiItem, d.SetCombi(0, []CombiItem{{Mode: 2, Item: 0}}))
	require.Equal(t, ErrCombiItem, d.SetCombi(0, []CombiItem{{Mode: 1, Item: 4}}))
	require.Nil(t, d.Combi(0))

	items := []CombiItem{{Mode: 0, Item: 0}, {Mode: 1, Item: 3}}
	require.NoError(t, d.SetCombi(5, items))
	require.Nil(t, d.Combi(4))
	require.Equal(t, &Combi{Index: 5, Items: items}, d.Combi(5))
	require.Nil(t, d.Combi(9))

	require.True(t, d.RemoveCombi(5))
	require.False(t, d.RemoveCombi(5))
	require.False(t, d.RemoveCombi(-1))
	require.Nil(t, d.Combi(5))
}

func TestCombiSizeLimit(t *testing.T) {
	d := New()
	d.SetModeFormat(0, 8, lpf2.Int32, 8, 0)
	var items []CombiItem
	for n := 0; n < 32; n++ {
		items = append(items, CombiItem{Mode: 0, Item: n % 8})
	}
	require.NoError(t, d.SetCombi(0, items))
	require.Equal(t, ErrCombiSize, d.SetCombi(1, append(items, CombiItem{})))
	require.Nil(t, d.Combi(1))
	require.Len(t, d.Combi(0).Items, 32)
}

func TestCombiPrunedWithModes(t *testing.T) {
	d := New()
	d.SetModeCount(3)
	d.SetModeFormat(2, 2, lpf2.Int8, 3, 0)
	require.NoError(t, d.SetCombi(0, []CombiItem{{Mode: 0, Item: 0}}))
	require.NoError(t, d.SetCombi(1, []CombiItem{{Mode: 2, Item: 1}}))

	d.SetModeFormat(2, 1, lpf2.Int8, 3, 0)
	require.Nil(t, d.Combi(1))
	require.NotNil(t, d.Combi(0))

	require.NoError(t, d.SetCombi(1, []CombiItem{{Mode: 2, Item: 0}}))
	d.SetModeCount(2)
	require.Nil(t, d.Combi(1))
	require.NotNil(t, d.Combi(0))
}

func TestMakeVersion(t *testing.T) {
	testCases := []struct {
		major, minor, rev, build int
		expect                   uint32
		str                      string
	}{
		{1, 0, 0, 0, 0x10000000, "1.0.00.0000"},
		{1, 2, 34, 5678, 0x12345678, "1.2.34.5678"},
		{12, -1, 100, 10000, 0x90999999, "9.0.99.9999"},
	}
	for _, tc := range testCases {
		ver := MakeVersion(tc.major, tc.minor, tc.rev, tc.build)
		require.Equal(t, tc.expect, ver)
		require.Equal(t, tc.str, FormatVersion(ver))
	}
}
