package save

import (
	"fmt"
	"sort"
)

// Encode serializes a Save back into an encrypted container blob. It is the
// exact inverse of Decode: decoding the result reproduces the input
// structure. Members absent from the Save are omitted from the container.
func (c *Codec) Encode(s *Save) ([]byte, error) {
	members := make(map[string][]byte)

	add := func(name string, head byte, plain []byte) error {
		enc, err := c.cipher.Encrypt(plain)
		if err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		members[name] = append([]byte{head}, enc...)
		return nil
	}
	version := func(name string, fallback byte) byte {
		if s.versions != nil {
			if v, ok := s.versions[name]; ok {
				return v
			}
		}
		return fallback
	}

	if s.GameRecord != nil {
		plain, err := encodeGameRecord(s.GameRecord)
		if err != nil {
			return nil, err
		}
		if err := add(MemberGameRecord, version(MemberGameRecord, 1), plain); err != nil {
			return nil, err
		}
	}
	if s.Progress != nil {
		head := version(MemberProgress, 3)
		plain, err := encodeProgress(s.Progress, head)
		if err != nil {
			return nil, err
		}
		if err := add(MemberProgress, head, plain); err != nil {
			return nil, err
		}
	}
	if s.Settings != nil {
		plain, err := encodeSettings(s.Settings)
		if err != nil {
			return nil, err
		}
		if err := add(MemberSettings, version(MemberSettings, 1), plain); err != nil {
			return nil, err
		}
	}
	if s.User != nil {
		plain, err := encodeUser(s.User)
		if err != nil {
			return nil, err
		}
		if err := add(MemberUser, version(MemberUser, 1), plain); err != nil {
			return nil, err
		}
	}
	if s.GameKey != nil {
		head := version(MemberGameKey, 2)
		plain := encodeGameKey(s.GameKey, head)
		if err := add(MemberGameKey, head, plain); err != nil {
			return nil, err
		}
	}
	return packContainer(members)
}

func encodeGameRecord(records GameRecord) ([]byte, error) {
	songIDs := make([]string, 0, len(records))
	for id := range records {
		songIDs = append(songIDs, id)
	}
	sort.Strings(songIDs)

	w := newWriter()
	w.writeVarint(uint64(len(songIDs)))
	for _, id := range songIDs {
		tiers := records[id]

		var present, fcBits byte
		for tier, rec := range tiers {
			if int(tier) >= tierCount {
				return nil, fmt.Errorf("%w: song %q has out-of-range tier %d", ErrMalformedRecord, id, tier)
			}
			present |= 1 << uint(tier)
			if rec.FullCombo {
				fcBits |= 1 << uint(tier)
			}
		}

		block := newWriter()
		block.writeByte(present)
		block.writeByte(fcBits)
		for _, tier := range Tiers() {
			rec, ok := tiers[tier]
			if !ok {
				continue
			}
			block.writeUint32(rec.Score)
			block.writeFloat32(float32(rec.Accuracy))
		}
		body := block.bytes()

		w.writeString(id)
		w.writeVarint(uint64(len(body)))
		w.flushBits()
		w.buf = append(w.buf, body...)
	}
	return w.bytes(), nil
}

// fieldError reports a Save map value that cannot be serialized, which means
// the structure was built by hand with the wrong types.
func fieldError(member, field string) error {
	return fmt.Errorf("%w: member %q field %q missing or mistyped", ErrMalformedRecord, member, field)
}

func encodeProgress(m map[string]any, head byte) ([]byte, error) {
	w := newWriter()
	var err error
	bit := func(name string) {
		if err != nil {
			return
		}
		v, ok := m[name].(bool)
		if !ok {
			err = fieldError(MemberProgress, name)
			return
		}
		w.writeBit(v)
	}
	bits := func(name string, n int) {
		if err != nil {
			return
		}
		v, ok := m[name].([]bool)
		if !ok || len(v) != n {
			err = fieldError(MemberProgress, name)
			return
		}
		w.writeBits(v)
	}

	bit("isFirstRun")
	bit("legacyChapterFinished")
	bit("alreadyShowCollectionTip")
	bit("alreadyShowAutoUnlockINTip")
	if err == nil {
		if v, ok := m["completed"].(string); ok {
			w.writeString(v)
		} else {
			err = fieldError(MemberProgress, "completed")
		}
	}
	if err == nil {
		if v, ok := m["songUpdateInfo"].(uint64); ok {
			w.writeVarint(v)
		} else {
			err = fieldError(MemberProgress, "songUpdateInfo")
		}
	}
	if err == nil {
		if v, ok := m["challengeModeRank"].(uint16); ok {
			w.writeUint16(v)
		} else {
			err = fieldError(MemberProgress, "challengeModeRank")
		}
	}
	if err == nil {
		if v, ok := m["money"].([]uint64); ok && len(v) == 5 {
			w.writeMoney(v)
		} else {
			err = fieldError(MemberProgress, "money")
		}
	}
	bits("unlockFlagOfSpasmodic", 4)
	bits("unlockFlagOfIgallta", 4)
	bits("unlockFlagOfRrharil", 4)
	bits("flagOfSongRecordKey", 8)
	bits("randomVersionUnlocked", 6)
	bit("chapter8UnlockBegin")
	bit("chapter8UnlockSecondPhase")
	bit("chapter8Passed")
	bits("chapter8SongUnlocked", 6)
	if head >= 4 {
		bits("flagOfSongRecordKeyTakumi", 3)
	}
	if err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func encodeSettings(m map[string]any) ([]byte, error) {
	w := newWriter()
	var err error
	bit := func(name string) {
		if err != nil {
			return
		}
		v, ok := m[name].(bool)
		if !ok {
			err = fieldError(MemberSettings, name)
			return
		}
		w.writeBit(v)
	}
	f32 := func(name string) {
		if err != nil {
			return
		}
		v, ok := m[name].(float32)
		if !ok {
			err = fieldError(MemberSettings, name)
			return
		}
		w.writeFloat32(v)
	}

	bit("chordSupport")
	bit("fcAPIndicator")
	bit("enableHitSound")
	bit("lowResolutionMode")
	if err == nil {
		if v, ok := m["deviceName"].(string); ok {
			w.writeString(v)
		} else {
			err = fieldError(MemberSettings, "deviceName")
		}
	}
	f32("bright")
	f32("musicVolume")
	f32("effectVolume")
	f32("hitSoundVolume")
	f32("soundOffset")
	f32("noteScale")
	if err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func encodeUser(m map[string]any) ([]byte, error) {
	w := newWriter()
	v, ok := m["showPlayerId"].(byte)
	if !ok {
		return nil, fieldError(MemberUser, "showPlayerId")
	}
	w.writeByte(v)
	for _, name := range []string{"selfIntro", "avatar", "background"} {
		s, ok := m[name].(string)
		if !ok {
			return nil, fieldError(MemberUser, name)
		}
		w.writeString(s)
	}
	return w.bytes(), nil
}

func encodeGameKey(gk *GameKey, head byte) []byte {
	names := make([]string, 0, len(gk.Keys))
	for name := range gk.Keys {
		names = append(names, name)
	}
	sort.Strings(names)

	w := newWriter()
	w.writeVarint(uint64(len(names)))
	for _, name := range names {
		entry := gk.Keys[name]
		w.writeString(name)
		w.writeByte(byte(len(entry.Flags) + 1))
		w.writeBits(entry.Type)
		for _, f := range entry.Flags {
			w.writeByte(f)
		}
	}
	w.writeBits(gk.LanotaReadKeys)
	w.writeBits(gk.CamelliaReadKey)
	if head >= 3 {
		w.writeByte(gk.SideStory4BeginReadKey)
		w.writeByte(gk.OldScoreClearedV390)
	}
	return w.bytes()
}
