// Package util содержит вспомогательные утилиты, не являющиеся частью публичного API.
package util

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate - скорость, на которой синтезатор работает из коробки (9600 8N1).
const DefaultBaudRate = 9600

// SerialPortInterface определяет интерфейс для работы с последовательным портом.
// Это позволяет нам использовать реальный порт в production и мок-объект в тестах.
type SerialPortInterface interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortConfig описывает параметры открытия порта.
// ReadTimeout <= 0 означает блокирующее чтение без таймаута.
type PortConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// realPort - это обертка над реальной реализацией последовательного порта.
type realPort struct {
	port serial.Port
}

func (r *realPort) Read(p []byte) (n int, err error)  { return r.port.Read(p) }
func (r *realPort) Write(p []byte) (n int, err error) { return r.port.Write(p) }
func (r *realPort) Close() error                      { return r.port.Close() }

// SetReadTimeout переводит t <= 0 в serial.NoTimeout: у go.bug.st/serial ноль означает
// неблокирующее чтение, а не "ждать вечно".
func (r *realPort) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		t = serial.NoTimeout
	}
	return r.port.SetReadTimeout(t)
}

// OpenPort открывает реальный последовательный порт в режиме 8N1.
func OpenPort(path string, cfg PortConfig) (SerialPortInterface, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	rp := &realPort{port: p}
	if err := rp.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("установка таймаута чтения для %s: %w", path, err)
	}
	return rp, nil
}

// ListPorts возвращает имена доступных последовательных портов.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
