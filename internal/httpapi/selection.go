package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/pkg/validation"
)

// selection reads the dashboard filters from the query string:
// year, modality (repeatable or comma separated), department, province,
// district, month_from and month_to. On invalid input it writes a 400 and
// returns false.
func selection(c *gin.Context) (dataset.Selection, bool) {
	var sel dataset.Selection
	if y := strings.TrimSpace(c.Query("year")); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION: year must be an integer"})
			return sel, false
		}
		sel.Year = &n
	}
	for _, m := range c.QueryArray("modality") {
		for _, part := range strings.Split(m, ",") {
			if part = strings.TrimSpace(part); part != "" {
				sel.Modalities = append(sel.Modalities, part)
			}
		}
	}
	sel.Department = c.Query("department")
	sel.Province = c.Query("province")
	sel.District = c.Query("district")

	from, to := strings.TrimSpace(c.Query("month_from")), strings.TrimSpace(c.Query("month_to"))
	if from != "" || to != "" {
		r := dataset.MonthRange{From: 1, To: 12}
		var err error
		if from != "" {
			if r.From, err = strconv.Atoi(from); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION: month_from must be an integer"})
				return sel, false
			}
		}
		if to != "" {
			if r.To, err = strconv.Atoi(to); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION: month_to must be an integer"})
				return sel, false
			}
		}
		sel.Months = &r
	}
	if msg := validation.ValidateStruct(sel); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return sel, false
	}
	return sel, true
}
