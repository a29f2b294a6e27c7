package main

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

type PortsCommand struct {
	All bool `short:"a" long:"all" description:"Include Bluetooth ports"`
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := listPorts(c.All)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println(dimStyle.Render("No serial ports found."))
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func listPorts(all bool) ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	if all {
		return ports, nil
	}

	var out []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		out = append(out, port)
	}
	return out, nil
}
