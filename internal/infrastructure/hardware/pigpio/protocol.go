package pigpio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// pigpiod ソケットコマンド
const (
	cmdModes = 0
	cmdPUD   = 2
	cmdWrite = 4
	cmdBR1   = 10
	cmdTick  = 16
	cmdNB    = 19
	cmdNC    = 21
	cmdFG    = 97
	cmdNOIB  = 99
)

// GPIOモードとプルアップ/ダウン
const (
	modeInput  = 0
	modeOutput = 1

	pudDown = 1
	pudUp   = 2
)

// 通知レポートのフラグ
const (
	flagWatchdog  = 1 << 5
	flagKeepAlive = 1 << 6
	flagEvent     = 1 << 7
)

const (
	commandSize = 16
	reportSize  = 12
)

// command 16バイトのリクエスト/レスポンス
type command struct {
	Cmd uint32
	P1  uint32
	P2  uint32
	P3  uint32
}

func (c command) encode() []byte {
	buf := make([]byte, commandSize)
	binary.LittleEndian.PutUint32(buf[0:], c.Cmd)
	binary.LittleEndian.PutUint32(buf[4:], c.P1)
	binary.LittleEndian.PutUint32(buf[8:], c.P2)
	binary.LittleEndian.PutUint32(buf[12:], c.P3)
	return buf
}

func decodeCommand(buf []byte) command {
	return command{
		Cmd: binary.LittleEndian.Uint32(buf[0:]),
		P1:  binary.LittleEndian.Uint32(buf[4:]),
		P2:  binary.LittleEndian.Uint32(buf[8:]),
		P3:  binary.LittleEndian.Uint32(buf[12:]),
	}
}

// roundTrip コマンドを送り、レスポンスの結果値を返す（負の値はpigpioのエラーコード）
func roundTrip(rw io.ReadWriter, c command) (int32, error) {
	if _, err := rw.Write(c.encode()); err != nil {
		return 0, fmt.Errorf("write command %d: %w", c.Cmd, err)
	}
	buf := make([]byte, commandSize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return 0, fmt.Errorf("read response %d: %w", c.Cmd, err)
	}
	resp := decodeCommand(buf)
	if resp.Cmd != c.Cmd {
		return 0, fmt.Errorf("response for command %d, want %d", resp.Cmd, c.Cmd)
	}
	res := int32(resp.P3)
	if res < 0 {
		return res, fmt.Errorf("pigpio command %d failed with code %d", c.Cmd, res)
	}
	return res, nil
}

// report 通知ソケットから届くGPIOレベル変化
type report struct {
	Seq   uint16
	Flags uint16
	Tick  uint32
	Level uint32
}

func decodeReport(buf []byte) report {
	return report{
		Seq:   binary.LittleEndian.Uint16(buf[0:]),
		Flags: binary.LittleEndian.Uint16(buf[2:]),
		Tick:  binary.LittleEndian.Uint32(buf[4:]),
		Level: binary.LittleEndian.Uint32(buf[8:]),
	}
}

func (r report) encode() []byte {
	buf := make([]byte, reportSize)
	binary.LittleEndian.PutUint16(buf[0:], r.Seq)
	binary.LittleEndian.PutUint16(buf[2:], r.Flags)
	binary.LittleEndian.PutUint32(buf[4:], r.Tick)
	binary.LittleEndian.PutUint32(buf[8:], r.Level)
	return buf
}

// levelChange レベル変化のみのレポートか（ウォッチドッグ・キープアライブ・イベントは除く）
func (r report) levelChange() bool {
	return r.Flags&(flagWatchdog|flagKeepAlive|flagEvent) == 0
}
