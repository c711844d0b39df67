package mp3

import "github.com/linuxmatters/codecflux/internal/ioutil"

// GranuleInfo holds the per-granule, per-channel fields of Layer III
// side information that matter for stream inspection: scale-factor
// compression selector, Huffman table selectors, and big/small-value
// region splits. The quantised spectral values themselves are never
// read, since this module never performs the Huffman/IMDCT decode.
type GranuleInfo struct {
	Part2_3Length    int
	BigValues        int
	GlobalGain       int
	ScalefacCompress int
	WindowSwitching  bool
	BlockType        int  // only set when WindowSwitching
	MixedBlock       bool // only set when WindowSwitching
	TableSelect      [3]int
	SubblockGain     [3]int
	Region0Count     int
	Region1Count     int
	Preflag          int
	ScalefacScale    int
	Count1TableSel   int
}

// SideInfo holds the MPEG-1/2 Layer III side information block that
// immediately follows the frame header (and optional CRC).
type SideInfo struct {
	MainDataBegin int
	PrivateBits   int
	Scfsi         [2][4]bool // [channel][band group], MPEG-1 only
	Granules      [][2]GranuleInfo
}

// sideInfoLength returns the side-info block size in bytes for the given
// header, matching the well-known MPEG-1/2 Layer III table.
func sideInfoLength(h Header) int {
	switch {
	case h.Version == Mpeg1 && h.NumChannels() == 1:
		return 17
	case h.Version == Mpeg1:
		return 32
	case h.NumChannels() == 1:
		return 9
	default:
		return 17
	}
}

// ParseSideInfo reads the Layer III side information immediately
// following a frame header (the header's 4 bytes, plus 2 more if
// h.Protected, must already be excluded from buf).
func ParseSideInfo(h Header, buf []byte) (SideInfo, error) {
	if h.Layer != Layer3 {
		return SideInfo{}, ioutil.InvalidData("side info only exists for layer III, got layer %d", h.Layer)
	}
	want := sideInfoLength(h)
	if len(buf) < want {
		return SideInfo{}, ioutil.InvalidData("side info needs %d bytes, got %d", want, len(buf))
	}

	br := newBitReader(buf[:want])
	var si SideInfo

	if h.Version == Mpeg1 {
		si.MainDataBegin = int(mustReadBits(br, 9))
		privBits := 3
		if h.NumChannels() == 1 {
			privBits = 5
		}
		si.PrivateBits = int(mustReadBits(br, uint8(privBits)))
		for ch := 0; ch < h.NumChannels(); ch++ {
			for band := 0; band < 4; band++ {
				si.Scfsi[ch][band] = mustReadBits(br, 1) == 1
			}
		}
		si.Granules = make([][2]GranuleInfo, 2)
		for gr := 0; gr < 2; gr++ {
			for ch := 0; ch < h.NumChannels(); ch++ {
				si.Granules[gr][ch] = readGranule(br, h.Version)
			}
		}
	} else {
		si.MainDataBegin = int(mustReadBits(br, 8))
		privBits := 1
		if h.NumChannels() == 1 {
			privBits = 1
		} else {
			privBits = 2
		}
		si.PrivateBits = int(mustReadBits(br, uint8(privBits)))
		si.Granules = make([][2]GranuleInfo, 1)
		for ch := 0; ch < h.NumChannels(); ch++ {
			si.Granules[0][ch] = readGranule(br, h.Version)
		}
	}

	return si, nil
}

func readGranule(br bitReaderIface, version int) GranuleInfo {
	var g GranuleInfo
	g.Part2_3Length = int(mustReadBits(br, 12))
	g.BigValues = int(mustReadBits(br, 9))
	g.GlobalGain = int(mustReadBits(br, 8))
	if version == Mpeg1 {
		g.ScalefacCompress = int(mustReadBits(br, 4))
	} else {
		g.ScalefacCompress = int(mustReadBits(br, 9))
	}
	g.WindowSwitching = mustReadBits(br, 1) == 1
	if g.WindowSwitching {
		g.BlockType = int(mustReadBits(br, 2))
		g.MixedBlock = mustReadBits(br, 1) == 1
		for i := 0; i < 2; i++ {
			g.TableSelect[i] = int(mustReadBits(br, 5))
		}
		for i := 0; i < 3; i++ {
			g.SubblockGain[i] = int(mustReadBits(br, 3))
		}
		g.Region0Count = 7
		g.Region1Count = 36
	} else {
		for i := 0; i < 3; i++ {
			g.TableSelect[i] = int(mustReadBits(br, 5))
		}
		g.Region0Count = int(mustReadBits(br, 4))
		g.Region1Count = int(mustReadBits(br, 3))
	}
	if version == Mpeg1 {
		g.Preflag = int(mustReadBits(br, 1)) // MPEG-2/2.5 granules carry no preflag bit
	}
	g.ScalefacScale = int(mustReadBits(br, 1))
	g.Count1TableSel = int(mustReadBits(br, 1))
	return g
}

type bitReaderIface interface {
	ReadBits(n uint8) (uint64, error)
}

func mustReadBits(br bitReaderIface, n uint8) uint64 {
	v, err := br.ReadBits(n)
	if err != nil {
		return 0
	}
	return v
}
