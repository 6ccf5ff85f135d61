package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	api "gitlab.com/dirk.krummacker/keepintouch/pkg/model"
)

var (
	serverURL string
	sizes     []int
)

// Usage example on the command line:
// > go run main.go --url http://localhost:8080 --sizes 1000,5000
var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Measures the average duration of the contact endpoints in microseconds",
	Run: func(cmd *cobra.Command, args []string) {
		benchmark()
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "http://localhost:8080", "base URL of the contact service")
	rootCmd.Flags().IntSliceVar(&sizes, "sizes", []int{1000, 5000, 10000, 50000, 100000}, "number of contacts per round")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func benchmark() {
	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET       LOG    DELETE ")
	fmt.Println("-------------------------------------------------------------")
	jsonBody := []byte(`{
		"name": "Marcus Antonius",
		"affiliation": "Senatus Populusque Romanus",
		"phone": "5559997775",
		"birthday": "0027-11-09"
	}`)
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		var ids []string
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				id, d := sendPostRequest(bytes.NewReader(jsonBody))
				ids = append(ids, id)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id string) int64 {
				return sendContactRequest(id, http.MethodPut, bytes.NewReader(jsonBody))
			}
			callInLoop(ids, f)
		}
		{
			// GET requests
			f := func(id string) int64 {
				return sendContactRequest(id, http.MethodGet, nil)
			}
			callInLoop(ids, f)
		}
		{
			// LOG requests
			f := func(id string) int64 {
				body := fmt.Sprintf(`{"contactId": %q}`, id)
				_, d := sendRequest(http.MethodPost, serverURL+"/log", bytes.NewReader([]byte(body)))
				return d
			}
			callInLoop(ids, f)
		}
		{
			// DELETE requests
			f := func(id string) int64 {
				return sendContactRequest(id, http.MethodDelete, nil)
			}
			callInLoop(ids, f)
		}
		fmt.Println()
	}
}

// callInLoop calls f for every id in random order and prints the average duration.
func callInLoop(ids []string, f func(id string) int64) {
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration int64
	for _, id := range shuffled {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(len(ids)*1000))
}

func sendPostRequest(bodyReader io.Reader) (string, int64) {
	resBody, duration := sendRequest(http.MethodPost, serverURL+"/contacts", bodyReader)
	var contact api.Contact
	err := json.Unmarshal(resBody, &contact)
	if err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return contact.ID, duration
}

func sendContactRequest(id string, method string, bodyReader io.Reader) int64 {
	_, duration := sendRequest(method, serverURL+"/contacts/"+id, bodyReader)
	return duration
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}
