package blockchain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/prometheus/common/log"
)

// Run : Start the node api server
func Run(blockChain *BlockChain, rewardAddress string, listenAddr string) error {
	api := newAPI(blockChain, rewardAddress)

	log.Info(fmt.Sprintf("Node UUID: %s", api.nodeIdentifier))
	log.Info(fmt.Sprintf("Listening on %s", listenAddr))
	return api.router().Run(listenAddr)
}

// NewHandler returns the api routes without starting a listener.
func NewHandler(blockChain *BlockChain, rewardAddress string) http.Handler {
	return newAPI(blockChain, rewardAddress).router()
}

// api : api for mutating the Blockchain
type api struct {
	blockChain     *BlockChain
	nodeIdentifier string
	rewardAddress  string
}

func newAPI(blockChain *BlockChain, rewardAddress string) *api {
	return &api{
		blockChain:     blockChain,
		nodeIdentifier: getUUID(),
		rewardAddress:  rewardAddress,
	}
}

func (a *api) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/chain", a.chain)
	router.GET("/chain/valid", a.valid)
	router.POST("/mine", a.mine)
	router.POST("/transactions/new", a.transactionsNew)
	router.GET("/transactions/pending", a.pending)
	router.GET("/wallets/:address/balance", a.balance)
	router.GET("/wallets/:address/transactions", a.history)
	router.GET("/getNodeUUID", a.getNodeUUID)
	return router
}

// BlockView is the api representation of a block.
type BlockView struct {
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previousHash"`
	Timestamp    int64          `json:"timestamp"`
	Nonce        int            `json:"nonce"`
	Transactions []*Transaction `json:"transactions"`
}

// ChainDTO : response body of GET /chain
type ChainDTO struct {
	Chain  []BlockView `json:"chain"`
	Length int         `json:"length"`
}

// MineDTO : optional request body of POST /mine
type MineDTO struct {
	RewardAddress string `json:"rewardAddress"`
}

func (a *api) getNodeUUID(c *gin.Context) {
	c.String(http.StatusOK, a.nodeIdentifier)
}

func (a *api) chain(c *gin.Context) {
	views := make([]BlockView, 0)
	if err := copier.Copy(&views, a.blockChain.Blocks()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, &ChainDTO{
		Chain:  views,
		Length: len(views),
	})
}

func (a *api) valid(c *gin.Context) {
	if err := a.blockChain.Verify(); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (a *api) mine(c *gin.Context) {
	var body MineDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rewardAddress := body.RewardAddress
	if rewardAddress == "" {
		rewardAddress = a.rewardAddress
	}

	// Mining stops if the client goes away.
	block, err := a.blockChain.MinePendingTransactions(c.Request.Context(), rewardAddress)
	if err != nil {
		log.Error(fmt.Sprintf("Mining on node %s failed, error: %s", a.nodeIdentifier, err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	var view BlockView
	if err := copier.Copy(&view, block); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *api) transactionsNew(c *gin.Context) {
	var transaction Transaction
	if err := c.ShouldBindJSON(&transaction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.blockChain.AddTransaction(&transaction); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrInsufficientFunds) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "transaction added", "hash": transaction.Hash()})
}

func (a *api) pending(c *gin.Context) {
	c.JSON(http.StatusOK, a.blockChain.Pending())
}

func (a *api) balance(c *gin.Context) {
	address := c.Param("address")
	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"balance": wireAmount(a.blockChain.BalanceOf(address)),
	})
}

func (a *api) history(c *gin.Context) {
	c.JSON(http.StatusOK, a.blockChain.TransactionsFor(c.Param("address")))
}

func getUUID() string {
	u, err := uuid.NewV4()
	if err != nil {
		log.Error("Unable to generate node uuid")
		return ""
	}
	return u.String()
}
