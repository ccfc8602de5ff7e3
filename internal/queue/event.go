// Package queue defines the print job payload exchanged with the printer
// and the development consumer that drains it.
package queue

// DataTypePNG is the only payload type produced by this service.
const DataTypePNG = "png"

// PrintJob is one receipt published to the printer. Field names and
// types match what the printer firmware subscribes to.
type PrintJob struct {
	TicketID      string `json:"ticket_id"`
	DataType      string `json:"data_type"`
	DataBase64    string `json:"data_base64"`
	PaperType     int    `json:"paper_type"`
	PaperWidthMM  int    `json:"paper_width_mm"`
	PaperHeightMM int    `json:"paper_height_mm"`
	CutPaper      int    `json:"cut_paper"`
}

// NewPNGJob wraps an encoded receipt as a job that cuts the paper after
// printing.
func NewPNGJob(ticketID, data string, widthMM, heightMM int) PrintJob {
	return PrintJob{
		TicketID:      ticketID,
		DataType:      DataTypePNG,
		DataBase64:    data,
		PaperWidthMM:  widthMM,
		PaperHeightMM: heightMM,
		CutPaper:      1,
	}
}
