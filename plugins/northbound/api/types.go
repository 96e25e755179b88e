package api

import (
	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/northbound"
)

const codeRateLimited northbound.Code = "RATE_LIMITED"

type Status struct {
	State         string `json:"state"`
	ListenAddress string `json:"listen_address"`
	Running       bool   `json:"running"`
}

type BindRequest struct {
	SSID string `json:"ssid" description:"SSID of the network to bind"`
}

type ResultResponse struct {
	Success bool `json:"success"`
}

type CallResponse struct {
	Method string `json:"method"`
	Result any    `json:"result"`
}

type StatusResponse struct {
	Binder binder.Snapshot `json:"binder"`
	API    *Status         `json:"api"`
}

type PathsResponse struct {
	Paths   []string `json:"paths"`
	Methods []string `json:"methods"`
}

type ErrorResponse struct {
	Code    northbound.Code `json:"code"`
	Message string          `json:"message"`
	Details any             `json:"details,omitempty"`
}
