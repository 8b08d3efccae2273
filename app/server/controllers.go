package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kashifpk/quranref/app/quran"
)

// Controller exposes the Quran service operations over HTTP. It does no
// domain work itself; every handler is a thin call into the service.
type Controller struct {
	svc *quran.Service
}

func NewController(svc *quran.Service) *Controller {
	return &Controller{svc: svc}
}

func (ct *Controller) GetLetters(c echo.Context) error {
	return c.JSON(http.StatusOK, ct.svc.Letters())
}

func (ct *Controller) GetSurahs(c echo.Context) error {
	surahs, err := ct.svc.Surahs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, surahs)
}

func (ct *Controller) GetTextTypes(c echo.Context) error {
	textTypes, err := ct.svc.TextTypes(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, textTypes)
}

func (ct *Controller) GetWordsByLetter(c echo.Context) error {
	words, err := ct.svc.WordsByLetter(c.Request().Context(), c.Param("letter"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, words)
}

func (ct *Controller) GetAyasByWord(c echo.Context) error {
	results, err := ct.svc.AyasByWord(c.Request().Context(),
		c.Param("word"), c.Param("languages"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (ct *Controller) GetWordsByCount(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "count must be an integer")
	}
	words, err := ct.svc.WordsByCount(c.Request().Context(), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, words)
}

func (ct *Controller) GetAvailableWordCounts(c echo.Context) error {
	buckets, err := ct.svc.AvailableWordCounts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, buckets)
}

func (ct *Controller) GetTopWords(c echo.Context) error {
	limit, err := strconv.Atoi(c.Param("limit"))
	if err != nil || limit < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	words, err := ct.svc.TopWords(c.Request().Context(), limit, quran.TopMost)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, words)
}

func (ct *Controller) GetText(c echo.Context) error {
	results, err := ct.svc.Text(c.Request().Context(),
		c.Param("ayas_spec"), c.Param("languages_spec"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (ct *Controller) Search(c echo.Context) error {
	results, err := ct.svc.Search(c.Request().Context(),
		c.Param("term"), c.Param("search_spec"), c.Param("translations_spec"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}
