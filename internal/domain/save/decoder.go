package save

import (
	"fmt"
)

// Member names inside the save container.
const (
	MemberGameKey    = "gameKey"
	MemberProgress   = "gameProgress"
	MemberGameRecord = "gameRecord"
	MemberSettings   = "settings"
	MemberUser       = "user"
)

// Option applies a configuration option to the Codec.
type Option func(*Codec)

// WithCipher overrides the default key material, e.g. for test fixtures.
func WithCipher(c *Cipher) Option {
	return func(cd *Codec) {
		if c != nil {
			cd.cipher = c
		}
	}
}

// Codec decodes and encodes complete save blobs. It holds no per-call state
// and is safe for concurrent use.
type Codec struct {
	cipher *Cipher
}

// NewCodec creates a Codec with the game's default key material.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{cipher: DefaultCipher()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode runs the full pipeline on a raw save blob: unpack the container,
// decrypt each member, and strictly parse it by member name and version
// head. Any failure aborts with a typed error; there is no partial output.
func (c *Codec) Decode(blob []byte) (*Save, error) {
	members, err := UnpackContainer(blob)
	if err != nil {
		return nil, err
	}
	return c.DecodeMembers(members)
}

// DecodeMembers parses already unpacked container members.
func (c *Codec) DecodeMembers(members map[string][]byte) (*Save, error) {
	s := &Save{versions: make(map[string]byte, len(members))}
	for name, data := range members {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: member %q has no payload", ErrTruncated, name)
		}
		head := data[0]
		plain, err := c.cipher.Decrypt(data[1:])
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", name, err)
		}
		r := newReader(plain)

		switch name {
		case MemberGameRecord:
			if head != 1 {
				return nil, unsupported(name, head)
			}
			s.GameRecord, err = parseGameRecord(r)
		case MemberProgress:
			switch head {
			case 3, 4:
				s.Progress, err = parseProgress(r, head)
			default:
				return nil, unsupported(name, head)
			}
		case MemberSettings:
			if head != 1 {
				return nil, unsupported(name, head)
			}
			s.Settings, err = parseSettings(r)
		case MemberUser:
			if head != 1 {
				return nil, unsupported(name, head)
			}
			s.User, err = parseUser(r)
		case MemberGameKey:
			switch head {
			case 2, 3:
				s.GameKey, err = parseGameKey(r, head)
			default:
				return nil, unsupported(name, head)
			}
		default:
			return nil, fmt.Errorf("%w: unknown member %q", ErrUnsupportedVersion, name)
		}
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", name, err)
		}
		s.versions[name] = head
	}
	return s, nil
}

func unsupported(member string, head byte) error {
	return fmt.Errorf("%w: member %q head %d", ErrUnsupportedVersion, member, head)
}

// parseGameRecord reads the per-song score table: a varint song count, then
// per song an id, a declared block length, a tier presence byte, a
// full-combo byte, and one (score, accuracy) pair per present tier.
func parseGameRecord(r *reader) (GameRecord, error) {
	songCount, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	records := make(GameRecord, songCount)
	for i := uint64(0); i < songCount; i++ {
		rawID, err := r.readString()
		if err != nil {
			return nil, err
		}
		songID := normalizeSongID(rawID)

		blockLen, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		blockStart := r.pos

		present, err := r.readByte()
		if err != nil {
			return nil, err
		}
		fcBits, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if present&^0x0F != 0 || fcBits&^0x0F != 0 {
			return nil, fmt.Errorf("%w: song %q flags presence=%#02x fc=%#02x outside known tiers", ErrMalformedRecord, songID, present, fcBits)
		}

		tiers := make(map[Tier]RawScore)
		for _, tier := range Tiers() {
			if (present>>uint(tier))&1 == 0 {
				continue
			}
			score, err := r.readUint32()
			if err != nil {
				return nil, err
			}
			acc, err := r.readFloat32()
			if err != nil {
				return nil, err
			}
			tiers[tier] = RawScore{
				Score:     score,
				Accuracy:  float64(acc),
				FullCombo: (fcBits>>uint(tier))&1 != 0,
			}
		}

		if got := uint64(r.pos - blockStart); got != blockLen {
			return nil, fmt.Errorf("%w: song %q block length %d, declared %d", ErrMalformedRecord, songID, got, blockLen)
		}
		if len(tiers) > 0 {
			records[songID] = tiers
		}
	}
	return records, nil
}

// parseProgress reads the gameProgress member. Version 4 appends one field
// to the version 3 layout.
func parseProgress(r *reader, head byte) (map[string]any, error) {
	m := make(map[string]any, 20)
	var err error
	read := func(name string, fn func() (any, error)) {
		if err != nil {
			return
		}
		var v any
		if v, err = fn(); err == nil {
			m[name] = v
		}
	}
	bit := func() (any, error) { return r.readBit() }
	str := func() (any, error) { return r.readString() }
	varint := func() (any, error) { return r.readVarint() }
	bits := func(n int) func() (any, error) {
		return func() (any, error) { return r.readBits(n) }
	}

	read("isFirstRun", bit)
	read("legacyChapterFinished", bit)
	read("alreadyShowCollectionTip", bit)
	read("alreadyShowAutoUnlockINTip", bit)
	read("completed", str)
	read("songUpdateInfo", varint)
	read("challengeModeRank", func() (any, error) { return r.readUint16() })
	read("money", func() (any, error) { return r.readMoney() })
	read("unlockFlagOfSpasmodic", bits(4))
	read("unlockFlagOfIgallta", bits(4))
	read("unlockFlagOfRrharil", bits(4))
	read("flagOfSongRecordKey", bits(8))
	read("randomVersionUnlocked", bits(6))
	read("chapter8UnlockBegin", bit)
	read("chapter8UnlockSecondPhase", bit)
	read("chapter8Passed", bit)
	read("chapter8SongUnlocked", bits(6))
	if head >= 4 {
		read("flagOfSongRecordKeyTakumi", bits(3))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseSettings(r *reader) (map[string]any, error) {
	m := make(map[string]any, 11)
	var err error
	read := func(name string, fn func() (any, error)) {
		if err != nil {
			return
		}
		var v any
		if v, err = fn(); err == nil {
			m[name] = v
		}
	}
	bit := func() (any, error) { return r.readBit() }
	f32 := func() (any, error) { return r.readFloat32() }

	read("chordSupport", bit)
	read("fcAPIndicator", bit)
	read("enableHitSound", bit)
	read("lowResolutionMode", bit)
	read("deviceName", func() (any, error) { return r.readString() })
	read("bright", f32)
	read("musicVolume", f32)
	read("effectVolume", f32)
	read("hitSoundVolume", f32)
	read("soundOffset", f32)
	read("noteScale", f32)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseUser(r *reader) (map[string]any, error) {
	m := make(map[string]any, 4)
	var err error
	read := func(name string, fn func() (any, error)) {
		if err != nil {
			return
		}
		var v any
		if v, err = fn(); err == nil {
			m[name] = v
		}
	}

	read("showPlayerId", func() (any, error) { return r.readByte() })
	read("selfIntro", func() (any, error) { return r.readString() })
	read("avatar", func() (any, error) { return r.readString() })
	read("background", func() (any, error) { return r.readString() })
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseGameKey(r *reader, head byte) (*GameKey, error) {
	keyCount, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	gk := &GameKey{Keys: make(map[string]KeyEntry, keyCount)}
	for i := uint64(0); i < keyCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		length, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			return nil, fmt.Errorf("%w: key %q declares zero length", ErrMalformedRecord, name)
		}
		typeBits, err := r.readBits(5)
		if err != nil {
			return nil, err
		}
		flags := make([]byte, 0, length-1)
		for j := 0; j < int(length)-1; j++ {
			b, err := r.readByte()
			if err != nil {
				return nil, err
			}
			flags = append(flags, b)
		}
		gk.Keys[name] = KeyEntry{Type: typeBits, Flags: flags}
	}
	if gk.LanotaReadKeys, err = r.readBits(6); err != nil {
		return nil, err
	}
	if gk.CamelliaReadKey, err = r.readBits(8); err != nil {
		return nil, err
	}
	if head >= 3 {
		if gk.SideStory4BeginReadKey, err = r.readByte(); err != nil {
			return nil, err
		}
		if gk.OldScoreClearedV390, err = r.readByte(); err != nil {
			return nil, err
		}
	}
	return gk, nil
}
